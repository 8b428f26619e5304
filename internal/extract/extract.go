// Package extract reads bank CSV exports into a date-sorted statement batch.
package extract

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/qbo-converter/internal/domain"
	"github.com/dvloznov/qbo-converter/internal/normalize"
)

// Layout describes where the interesting cells live in an export row.
type Layout struct {
	MinColumns     int
	DateCol        int
	DescriptionCol int
	CreditCol      int
	DebitCol       int

	// HeaderMarkers are lower-case prefixes of the first cell that mark a
	// header or summary row in the exports we receive.
	HeaderMarkers []string
}

// DefaultLayout is the six-or-more column export: date, -, description,
// credit, debit, ...
func DefaultLayout() Layout {
	return Layout{
		MinColumns:     6,
		DateCol:        0,
		DescriptionCol: 2,
		CreditCol:      3,
		DebitCol:       4,
		HeaderMarkers: []string{
			"date",
			"posting date",
			"transaction date",
			"fecha",
			"datum",
			"account",
			"balance",
			"opening balance",
			"closing balance",
			"total",
			"statement",
		},
	}
}

// Source is one uploaded CSV file.
type Source struct {
	Name   string
	Reader io.Reader
}

// FileError records a CSV read failure that stopped one file early.
type FileError struct {
	Name string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

// Stats summarises what happened to the rows of a request.
type Stats struct {
	Files      int
	Rows       int
	Skipped    int // header, noise and short rows
	Dropped    int // rows with an unparseable date or no usable amount
	Extracted  int
	FileErrors []FileError
}

// Extractor applies a Layout to CSV sources.
type Extractor struct {
	layout Layout
	year   int
}

// NewExtractor creates an extractor. year is used for dates written as bare MM/DD.
func NewExtractor(layout Layout, year int) *Extractor {
	return &Extractor{layout: layout, year: year}
}

// Extract reads every source, drops rows it cannot interpret and returns the
// surviving transactions sorted ascending by date. A bad row never aborts the
// batch; only an empty result is an error (domain.ErrNoTransactions).
func (e *Extractor) Extract(ctx context.Context, sources ...Source) (domain.Batch, Stats, error) {
	var (
		batch domain.Batch
		stats Stats
	)

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		stats.Files++

		txs, err := e.extractFile(src, &stats)
		batch = append(batch, txs...)
		if err != nil {
			stats.FileErrors = append(stats.FileErrors, FileError{Name: src.Name, Err: err})
		}
	}

	stats.Extracted = len(batch)
	if len(batch) == 0 {
		return nil, stats, domain.ErrNoTransactions
	}

	return batch.Sorted(), stats, nil
}

func (e *Extractor) extractFile(src Source, stats *Stats) ([]domain.Transaction, error) {
	r := csv.NewReader(src.Reader)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var txs []domain.Transaction
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return txs, nil
		}
		if err != nil {
			return txs, fmt.Errorf("read csv: %w", err)
		}
		stats.Rows++

		if e.isNoise(record) {
			stats.Skipped++
			continue
		}

		tx, ok := e.rowToTransaction(record)
		if !ok {
			stats.Dropped++
			continue
		}
		txs = append(txs, tx)
	}
}

func (e *Extractor) isNoise(record []string) bool {
	if len(record) < e.layout.MinColumns {
		return true
	}
	first := strings.ToLower(strings.TrimSpace(record[0]))
	first = strings.Trim(first, `"'`)
	for _, marker := range e.layout.HeaderMarkers {
		if strings.HasPrefix(first, marker) {
			return true
		}
	}
	return false
}

// rowToTransaction maps one data row. A parsed credit cell makes the amount
// positive and a parsed debit cell makes it negative. When both cells parse
// the debit wins, unless the debit is a zero placeholder next to a non-zero
// credit.
func (e *Extractor) rowToTransaction(record []string) (domain.Transaction, bool) {
	date, ok := normalize.ParseDate(cell(record, e.layout.DateCol), e.year)
	if !ok {
		return domain.Transaction{}, false
	}

	credit, hasCredit := normalize.ParseAmount(cell(record, e.layout.CreditCol))
	debit, hasDebit := normalize.ParseAmount(cell(record, e.layout.DebitCol))

	tx := domain.Transaction{
		Date:        date,
		Description: strings.TrimSpace(cell(record, e.layout.DescriptionCol)),
	}
	if hasDebit && hasCredit && debit.IsZero() && !credit.IsZero() {
		hasDebit = false
	}

	switch {
	case hasDebit:
		tx.Amount = debit.Abs().Neg()
	case hasCredit:
		tx.Amount = credit.Abs()
	default:
		return domain.Transaction{}, false
	}
	return tx, true
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}
