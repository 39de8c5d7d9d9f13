package invoice

import (
	"errors"
	"fmt"
)

// Pipeline errors. Accounting outcomes (descuadres, missing totals, pending
// categories) are never errors; they are recorded on the invoice.
var (
	// ErrNoInput is returned when a batch has no supported documents.
	ErrNoInput = errors.New("no supported documents in input")

	// ErrUnreadableFile is returned when a document cannot be opened.
	ErrUnreadableFile = errors.New("input document cannot be read")

	// ErrCanceled is returned when a batch is canceled between documents.
	ErrCanceled = errors.New("batch was canceled")

	// ErrUnknownSupplier is returned when a supplier filter names no strategy.
	ErrUnknownSupplier = errors.New("supplier filter does not match any strategy")
)

// PipelineError wraps errors with the operation and document that failed.
type PipelineError struct {
	// Op is the operation that failed (e.g., "ProcessDocument", "Run").
	Op string

	// Path is the document being processed, if any.
	Path string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	switch {
	case e.Path != "" && e.Details != "":
		return fmt.Sprintf("invoice: %s failed for %s: %s: %v", e.Op, e.Path, e.Details, e.Err)
	case e.Path != "":
		return fmt.Sprintf("invoice: %s failed for %s: %v", e.Op, e.Path, e.Err)
	case e.Details != "":
		return fmt.Sprintf("invoice: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("invoice: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *PipelineError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewPipelineError creates a PipelineError for a document.
func NewPipelineError(op, path string, err error, details string) *PipelineError {
	return &PipelineError{
		Op:      op,
		Path:    path,
		Err:     err,
		Details: details,
	}
}
