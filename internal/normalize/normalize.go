// Package normalize turns locale-variant spreadsheet cells into typed dates and amounts.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

var (
	isoDate       = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	usDateLong    = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	usDateShort   = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2})$`)
	usDateNoYear  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	currencyMarks = strings.NewReplacer("$", "", "£", "", "€", "", "¥", "", "USD", "", ",", "", " ", "", "\u00a0", "")
)

// stripQuotes removes surrounding whitespace and one leading and one trailing
// quote artifact left behind by spreadsheet exports ('2024-01-05 or "12.00").
func stripQuotes(raw string) string {
	s := strings.TrimSpace(raw)
	if s != "" && (s[0] == '\'' || s[0] == '"') {
		s = s[1:]
	}
	if s != "" && (s[len(s)-1] == '\'' || s[len(s)-1] == '"') {
		s = s[:len(s)-1]
	}
	return strings.TrimSpace(s)
}

// ParseDate parses a statement date. Accepted forms, in priority order:
// YYYY-MM-DD, MM/DD/YYYY, MM/DD/YY (read as 20YY) and MM/DD.
// A bare MM/DD takes the supplied year; callers decide what that year is.
// The second result is false for anything unparseable or not on the calendar.
func ParseDate(raw string, year int) (civil.Date, bool) {
	s := stripQuotes(raw)
	if s == "" {
		return civil.Date{}, false
	}

	if m := isoDate.FindStringSubmatch(s); m != nil {
		return makeDate(m[1], m[2], m[3])
	}
	if m := usDateLong.FindStringSubmatch(s); m != nil {
		return makeDate(m[3], m[1], m[2])
	}
	if m := usDateShort.FindStringSubmatch(s); m != nil {
		return makeDate("20"+m[3], m[1], m[2])
	}
	if m := usDateNoYear.FindStringSubmatch(s); m != nil {
		return makeDate(strconv.Itoa(year), m[1], m[2])
	}
	return civil.Date{}, false
}

func makeDate(year, month, day string) (civil.Date, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return civil.Date{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return civil.Date{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return civil.Date{}, false
	}
	date := civil.Date{Year: y, Month: time.Month(m), Day: d}
	if !date.IsValid() {
		return civil.Date{}, false
	}
	return date, true
}

// ParseAmount parses a currency-formatted amount such as "$1,234.56",
// "(45.00)" or "USD 12". A value wrapped entirely in parentheses or followed
// by a minus sign is negative.
// The amount is returned unrounded.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	s := stripQuotes(raw)
	if s == "" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = currencyMarks.Replace(s)
	s = strings.TrimPrefix(s, "+")
	if s == "" || s == "-" {
		return decimal.Zero, false
	}
	// Some ledgers print debits as "45.00-".
	if strings.HasSuffix(s, "-") && !strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimSuffix(s, "-")
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		amount = amount.Abs().Neg()
	}
	return amount, true
}
