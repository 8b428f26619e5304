package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/qbo-converter/internal/domain"
)

func src(name, body string) Source {
	return Source{Name: name, Reader: strings.NewReader(body)}
}

func TestExtractSingleFile(t *testing.T) {
	csvBody := strings.Join([]string{
		"Date,Ref,Description,Credit,Debit,Balance",
		"03/02/2024,1,PAYROLL,\"$2,500.00\",,2600.00",
		"03/01/2024,2,COFFEE SHOP,,4.50,100.00",
		"'2024-03-03,3,REFUND,(12.00),,2588.00",
		"03/04/2024,4,SHORT ROW",
		"Total,,,,,",
	}, "\n")

	e := NewExtractor(DefaultLayout(), 2024)
	batch, stats, err := e.Extract(context.Background(), src("a.csv", csvBody))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(batch) != 3 {
		t.Fatalf("got %d transactions, want 3", len(batch))
	}

	want := []struct {
		date   civil.Date
		desc   string
		amount string
	}{
		{civil.Date{Year: 2024, Month: 3, Day: 1}, "COFFEE SHOP", "-4.50"},
		{civil.Date{Year: 2024, Month: 3, Day: 2}, "PAYROLL", "2500.00"},
		{civil.Date{Year: 2024, Month: 3, Day: 3}, "REFUND", "12.00"},
	}
	for i, w := range want {
		got := batch[i]
		if got.Date != w.date || got.Description != w.desc || got.Amount.StringFixed(2) != w.amount {
			t.Errorf("batch[%d] = {%v %q %s}, want {%v %q %s}",
				i, got.Date, got.Description, got.Amount.StringFixed(2), w.date, w.desc, w.amount)
		}
	}

	if stats.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3 (header, short row, total)", stats.Skipped)
	}
	if stats.Extracted != 3 || stats.Files != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestExtractDropsBadRowsWithoutFailing(t *testing.T) {
	csvBody := strings.Join([]string{
		"not-a-date,x,BROKEN,1.00,,",
		"03/05/2024,x,NO AMOUNT,,,",
		"03/05/2024,x,GOOD,,9.99,",
	}, "\n")

	batch, stats, err := NewExtractor(DefaultLayout(), 2024).Extract(context.Background(), src("b.csv", csvBody))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(batch) != 1 || batch[0].Description != "GOOD" {
		t.Fatalf("unexpected batch: %+v", batch)
	}
	if stats.Dropped != 2 {
		t.Errorf("Dropped = %d, want 2", stats.Dropped)
	}
}

func TestExtractDebitPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		row    string
		amount string
	}{
		{"debit only", "01/02/2024,,X,,10.00,", "-10.00"},
		{"credit only", "01/02/2024,,X,10.00,,", "10.00"},
		{"both present debit wins", "01/02/2024,,X,5.00,7.00,", "-7.00"},
		{"zero debit placeholder", "01/02/2024,,X,5.00,0.00,", "5.00"},
		{"negative credit cell", "01/02/2024,,X,-5.00,,", "5.00"},
		{"zero amount", "01/02/2024,,X,0.00,,", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, _, err := NewExtractor(DefaultLayout(), 2024).Extract(context.Background(), src("c.csv", tt.row))
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if got := batch[0].Amount.StringFixed(2); got != tt.amount {
				t.Errorf("amount = %s, want %s", got, tt.amount)
			}
		})
	}
}

func TestExtractSortsAcrossFiles(t *testing.T) {
	first := "02/10/2024,,LATE,1.00,,\n"
	second := "01/05/2024,,EARLY,2.00,,\n02/01/2024,,MIDDLE,,3.00,\n"

	batch, stats, err := NewExtractor(DefaultLayout(), 2024).Extract(context.Background(),
		src("one.csv", first), src("two.csv", second))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	var got []string
	for _, tx := range batch {
		got = append(got, tx.Description)
	}
	if strings.Join(got, ",") != "EARLY,MIDDLE,LATE" {
		t.Errorf("order = %v", got)
	}
	if stats.Files != 2 {
		t.Errorf("Files = %d, want 2", stats.Files)
	}
}

func TestExtractBareMonthDayUsesConfiguredYear(t *testing.T) {
	batch, _, err := NewExtractor(DefaultLayout(), 2019).Extract(context.Background(), src("d.csv", "12/31,,NYE,,1.00,\n"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if batch[0].Date != (civil.Date{Year: 2019, Month: 12, Day: 31}) {
		t.Errorf("date = %v", batch[0].Date)
	}
}

func TestExtractOnlyNoiseIsAnError(t *testing.T) {
	csvBody := "Date,Ref,Description,Credit,Debit,Balance\nOpening Balance,,,,,100.00\n"

	_, _, err := NewExtractor(DefaultLayout(), 2024).Extract(context.Background(), src("e.csv", csvBody))
	if !errors.Is(err, domain.ErrNoTransactions) {
		t.Errorf("err = %v, want ErrNoTransactions", err)
	}
}

func TestExtractNoSources(t *testing.T) {
	_, _, err := NewExtractor(DefaultLayout(), 2024).Extract(context.Background())
	if !errors.Is(err, domain.ErrNoTransactions) {
		t.Errorf("err = %v, want ErrNoTransactions", err)
	}
}

func TestExtractCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewExtractor(DefaultLayout(), 2024).Extract(ctx, src("f.csv", "01/01/2024,,X,1,,\n"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
