// Package pipeline turns statements into QBO files: directly for the
// synchronous endpoint, and as a sequence of steps for the converter worker.
package pipeline

import (
	"bytes"
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/qbo-converter/internal/extract"
	"github.com/dvloznov/qbo-converter/internal/ofx"
	"github.com/shopspring/decimal"
)

// Result is a finished conversion.
type Result struct {
	QBO          []byte
	Transactions int
	Dropped      int
	Start        civil.Date
	End          civil.Date
	Total        decimal.Decimal
	Stats        extract.Stats
}

// Converter runs the extract and encode stages over a set of CSV sources.
// A Converter has no per-request state and may be shared.
type Converter struct {
	extractor *extract.Extractor
	encoder   *ofx.Encoder
}

// NewConverter creates a Converter.
func NewConverter(extractor *extract.Extractor, encoder *ofx.Encoder) *Converter {
	return &Converter{extractor: extractor, encoder: encoder}
}

// ConvertCSV merges every source into one statement. Nothing is returned
// unless the whole document encoded; a request with no usable rows fails with
// domain.ErrNoTransactions.
func (c *Converter) ConvertCSV(ctx context.Context, sources ...extract.Source) (Result, error) {
	batch, stats, err := c.extractor.Extract(ctx, sources...)
	if err != nil {
		return Result{Stats: stats}, err
	}

	var buf bytes.Buffer
	if err := c.encoder.EncodeTo(&buf, batch); err != nil {
		return Result{Stats: stats}, fmt.Errorf("encode statement: %w", err)
	}

	return Result{
		QBO:          buf.Bytes(),
		Transactions: len(batch),
		Dropped:      stats.Dropped,
		Start:        batch.Start(),
		End:          batch.End(),
		Total:        batch.Total(),
		Stats:        stats,
	}, nil
}
