package document

import (
	"errors"
	"fmt"
)

// ErrInvalidDocument is wrapped by every error returned for a malformed document.
var ErrInvalidDocument = errors.New("invalid workflow document")

// ValidationError describes the first problem found in a document.
// Wraps ErrInvalidDocument for errors.Is() compatibility.
type ValidationError struct {
	Path   string // e.g. "nodes[2].position.x"; empty for the document root
	Reason string
	Err    error // optional underlying error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidDocument.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidDocument.Error(), e.Path, e.Reason)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidDocument, e.Err}
	}
	return []error{ErrInvalidDocument}
}

func invalid(path, format string, args ...any) *ValidationError {
	return &ValidationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
