package textract

import (
	"errors"
	"fmt"
)

// Common extraction errors. None of them stops a batch: the dispatcher turns
// every failure into empty text.
var (
	// ErrBinaryNotFound is returned when pdftotext, pdftoppm or tesseract is not installed.
	ErrBinaryNotFound = errors.New("external binary not found")

	// ErrUnsupportedFormat is returned when a backend cannot read the file type.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrEmptyDocument is returned when the backend produced no text at all.
	ErrEmptyDocument = errors.New("document contains no readable text")

	// ErrPageTimeout is returned when OCR of a single page exceeded its budget.
	ErrPageTimeout = errors.New("OCR page timeout exceeded")

	// ErrDocumentTooLarge is returned when a cloud OCR engine would reject the file.
	ErrDocumentTooLarge = errors.New("document exceeds the maximum size for synchronous OCR")

	// ErrMissingCredentials is returned when a Google engine is selected without credentials.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS")
)

// BackendError wraps errors with the backend and operation that failed.
type BackendError struct {
	// Backend is the backend name (pdftext, layout, tesseract, vision, documentai).
	Backend string

	// Op is the operation that failed (e.g., "Render", "Recognize").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("textract: %s %s failed: %s: %v", e.Backend, e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("textract: %s %s failed: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// wrapError wraps err as a BackendError unless it already is one.
func wrapError(backend, op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Backend: backend, Op: op, Err: err, Details: details}
}
