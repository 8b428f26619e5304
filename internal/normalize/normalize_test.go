package normalize

import (
	"testing"

	"cloud.google.com/go/civil"
)

func TestParseDate(t *testing.T) {
	march1 := civil.Date{Year: 2024, Month: 3, Day: 1}

	tests := []struct {
		input  string
		year   int
		want   civil.Date
		wantOK bool
	}{
		{"2024-03-01", 2020, march1, true},
		{"03/01/2024", 2020, march1, true},
		{"03/01/24", 2020, march1, true},
		{"3/1/24", 2020, march1, true},
		{"03/01", 2024, march1, true},
		{"03/01", 2023, civil.Date{Year: 2023, Month: 3, Day: 1}, true},
		{"'2024-03-01", 2020, march1, true},
		{"\"03/01/2024\"", 2020, march1, true},
		{"  2024-03-01  ", 2020, march1, true},
		{"02/30/2024", 2020, civil.Date{}, false},
		{"2024-13-01", 2020, civil.Date{}, false},
		{"Date", 2020, civil.Date{}, false},
		{"", 2020, civil.Date{}, false},
		{"01.03.2024", 2020, civil.Date{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseDate(tt.input, tt.year)
			if ok != tt.wantOK {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDateFormsAgree(t *testing.T) {
	a, _ := ParseDate("2024-03-01", 0)
	b, _ := ParseDate("03/01/2024", 0)
	c, _ := ParseDate("03/01/24", 0)
	if a != b || b != c {
		t.Errorf("expected identical dates, got %v %v %v", a, b, c)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"(1,234.56)", "-1234.56", true},
		{"$45.00", "45", true},
		{"45.00", "45", true},
		{"-25.99", "-25.99", true},
		{"+25.99", "25.99", true},
		{"USD 1,000", "1000", true},
		{"'12.50'", "12.5", true},
		{"\"$1,234,567.89\"", "1234567.89", true},
		{"(-5.00)", "-5", true},
		{"£7.10", "7.1", true},
		{"45.00-", "-45", true},
		{"$1,234.56-", "-1234.56", true},
		{"5-5", "0", false},
		{"", "0", false},
		{"   ", "0", false},
		{"-", "0", false},
		{"abc", "0", false},
		{"()", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseAmount(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseAmount(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got.String(), tt.want)
			}
		})
	}
}

func TestParseAmountDoesNotRound(t *testing.T) {
	got, ok := ParseAmount("1.005")
	if !ok {
		t.Fatal("expected ok")
	}
	if got.String() != "1.005" {
		t.Errorf("got %s, want 1.005", got.String())
	}
}
