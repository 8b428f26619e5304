package domain

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TxnType is the OFX transaction type derived from the amount sign.
type TxnType string

const (
	TxnCredit TxnType = "CREDIT"
	TxnDebit  TxnType = "DEBIT"
)

// Currency is the only currency a statement batch is encoded in.
const Currency = "USD"

// Transaction represents one normalized statement line.
// It lives only for the duration of a single conversion and is never persisted.
type Transaction struct {
	Date        civil.Date      // posted date, no time component
	Description string          // raw description; truncated only at encode time
	Amount      decimal.Decimal // signed: money in is positive, money out negative
}

// Type returns CREDIT for positive amounts and DEBIT otherwise (zero included).
func (t Transaction) Type() TxnType {
	if t.Amount.IsPositive() {
		return TxnCredit
	}
	return TxnDebit
}

// Batch is the ordered set of transactions extracted from one conversion request.
type Batch []Transaction

// Sorted returns a copy of the batch ordered ascending by date.
// The sort is stable so rows sharing a date keep their input order.
func (b Batch) Sorted() Batch {
	out := make(Batch, len(b))
	copy(out, b)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// IsSorted reports whether the batch is already in ascending date order.
func (b Batch) IsSorted() bool {
	for i := 1; i < len(b); i++ {
		if b[i].Date.Before(b[i-1].Date) {
			return false
		}
	}
	return true
}

// Start returns the date of the first transaction. The batch must be non-empty.
func (b Batch) Start() civil.Date {
	return b[0].Date
}

// End returns the date of the last transaction. The batch must be non-empty.
func (b Batch) End() civil.Date {
	return b[len(b)-1].Date
}

// Total sums every amount starting from zero, each rounded to cents first so
// the total agrees with the amounts as they are written out.
// It is not an account balance: no prior statement balance is carried in.
func (b Batch) Total() decimal.Decimal {
	total := decimal.Zero
	for _, t := range b {
		total = total.Add(t.Amount.Round(2))
	}
	return total
}
