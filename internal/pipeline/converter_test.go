package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/aclindsa/ofxgo"
	"github.com/dvloznov/qbo-converter/internal/domain"
	"github.com/dvloznov/qbo-converter/internal/extract"
	"github.com/dvloznov/qbo-converter/internal/ofx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testInstitution = ofx.Institution{
	BankID:      "123456789",
	AccountID:   "000111222",
	AccountType: "CHECKING",
	Org:         "Example Bank",
	FID:         "10898",
	IntuitBID:   "10898",
}

func testEncoder() *ofx.Encoder {
	return ofx.NewEncoder(testInstitution,
		ofx.WithClock(func() time.Time { return time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC) }),
		ofx.WithUIDGenerator(func() string { return "uid-1" }),
	)
}

func testConverter() *Converter {
	return NewConverter(extract.NewExtractor(extract.DefaultLayout(), 2024), testEncoder())
}

func csvSource(name string, rows ...string) extract.Source {
	body := "Date,Ref,Description,Credit,Debit,Balance\n" + strings.Join(rows, "\n")
	return extract.Source{Name: name, Reader: strings.NewReader(body)}
}

func TestConvertCSVMergesFiles(t *testing.T) {
	res, err := testConverter().ConvertCSV(context.Background(),
		csvSource("b.csv", "03/05/2024,1,GROCERIES,,45.10,", "not a date,2,BROKEN,,1.00,"),
		csvSource("a.csv", "03/01/2024,1,PAYROLL,2500.00,,"),
	)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Transactions)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.March, Day: 1}, res.Start)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.March, Day: 5}, res.End)
	assert.Equal(t, "2454.90", res.Total.StringFixed(2))

	resp, err := ofxgo.ParseResponse(strings.NewReader(string(res.QBO)))
	require.NoError(t, err)
	require.Len(t, resp.Bank, 1)
	stmt, ok := resp.Bank[0].(*ofxgo.StatementResponse)
	require.True(t, ok)
	require.Len(t, stmt.BankTranList.Transactions, 2)
	assert.Equal(t, "PAYROLL", string(stmt.BankTranList.Transactions[0].Name))
	assert.Equal(t, "GROCERIES", string(stmt.BankTranList.Transactions[1].Name))
}

func TestConvertCSVNoTransactions(t *testing.T) {
	res, err := testConverter().ConvertCSV(context.Background(),
		csvSource("empty.csv", "Total,,,,,"),
	)
	assert.True(t, errors.Is(err, domain.ErrNoTransactions))
	assert.Nil(t, res.QBO)
}
