// Package fitid derives the OFX FITID for a transaction.
//
// Importing software uses FITID to recognise a transaction it has already
// seen, so the same (date, description, amount) must always map to the same
// id. The hash is not cryptographic and collisions are tolerated.
package fitid

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"
)

// Length is the number of hex characters in every generated id.
const Length = 12

const mask48 = 1<<48 - 1

// Key builds the composite string that is hashed: the date without
// separators, the amount to two decimals and the untruncated description.
func Key(date civil.Date, description string, amount decimal.Decimal) string {
	return fmt.Sprintf("%04d%02d%02d|%s|%s", date.Year, int(date.Month), date.Day, amount.StringFixed(2), description)
}

// Make returns the 12 character FITID for a transaction.
func Make(date civil.Date, description string, amount decimal.Decimal) string {
	sum := xxhash.Sum64String(Key(date, description, amount))
	return fmt.Sprintf("%012x", sum&mask48)
}
