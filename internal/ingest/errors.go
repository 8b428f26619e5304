package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownUpload means the fileKey does not name an uploaded object.
	ErrUnknownUpload = errors.New("upload not found")

	// ErrNotReady means the converted file has not appeared yet. It is the
	// normal state while processing, not a failure.
	ErrNotReady = errors.New("converted file not ready")
)

// ValidationError reports a request field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
