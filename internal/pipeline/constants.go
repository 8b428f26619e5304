package pipeline

import "errors"

// DefaultModelName is the default Gemini model used for parsing PDF statements.
const DefaultModelName = "gemini-2.5-flash"

// Content types the worker knows how to convert.
const (
	ContentTypeCSV = "text/csv"
	ContentTypePDF = "application/pdf"
)

// ErrUnsupportedFormat is returned for sources the worker cannot read,
// currently XLS and XLSX spreadsheets.
var ErrUnsupportedFormat = errors.New("unsupported statement format")
