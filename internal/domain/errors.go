package domain

import "errors"

var (
	// ErrNoTransactions is returned when a whole conversion request yields no
	// usable rows. It is a client error: the CSV layout did not match.
	ErrNoTransactions = errors.New("no valid transactions found")

	// ErrEmptyBatch is returned by the encoder when asked to encode nothing.
	ErrEmptyBatch = errors.New("statement batch is empty")
)
