package ingest

import (
	"regexp"
	"testing"
	"time"
)

func TestSourceKeyRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	key := SourceKey(at, ".CSV")

	if !regexp.MustCompile(`^incoming/\d+_[0-9a-f]{8}\.csv$`).MatchString(key) {
		t.Fatalf("SourceKey() = %q", key)
	}
	got, ok := ParseSourceKey(key)
	if !ok {
		t.Fatalf("ParseSourceKey(%q) failed", key)
	}
	if !got.Equal(at) {
		t.Errorf("ParseSourceKey() = %v, want %v", got, at)
	}

	if SourceKey(at, "csv") == key {
		t.Error("two keys for the same instant should differ")
	}
}

func TestParseSourceKeyRejects(t *testing.T) {
	for _, key := range []string{
		"",
		"parsed/1700000000000_abcd1234.qbo",
		"incoming/abc_def.csv",
		"incoming/1700000000000.csv",
		"incoming/nested/1700000000000_abcd1234.csv",
		"incoming/-5_abcd1234.csv",
	} {
		if _, ok := ParseSourceKey(key); ok {
			t.Errorf("ParseSourceKey(%q) should fail", key)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"March Statement (1).pdf", "March_Statement_1"},
		{"plain.csv", "plain"},
		{"no-extension", "no-extension"},
		{`C:\Users\me\Bank Export.CSV`, "Bank_Export"},
		{"dir/sub/file name.xlsx", "file_name"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeName(tt.in); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDerivedAndDownloadNames(t *testing.T) {
	if got := DerivedKey("March Statement (1).pdf"); got != "parsed/March_Statement_1.qbo" {
		t.Errorf("DerivedKey() = %q", got)
	}
	if got := DownloadName("March Statement (1).pdf"); got != "March Statement (1).qbo" {
		t.Errorf("DownloadName() = %q", got)
	}
}
