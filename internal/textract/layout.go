package textract

import (
	"context"
	"errors"
	"strings"
)

// Layout extracts column-aware text with `pdftotext -layout`, so table rows
// survive as space-separated lines. When the binary is missing it falls back
// to row reconstruction from the embedded text layer.
type Layout struct {
	Pdftotext string
	Runner    Runner
	Fallback  Backend
}

// NewLayout creates a layout backend with the exec runner and the rows fallback.
func NewLayout(pdftotext string) *Layout {
	if pdftotext == "" {
		pdftotext = "pdftotext"
	}
	return &Layout{Pdftotext: pdftotext, Runner: ExecRunner{}, Fallback: PDFText{Rows: true}}
}

func (l *Layout) Name() string { return "pdftotext-layout" }

// Extract implements Backend.
func (l *Layout) Extract(ctx context.Context, path string) (string, error) {
	const op = "Extract"

	if IsImage(path) {
		return "", wrapError(l.Name(), op, ErrUnsupportedFormat, path)
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := l.Runner.Run(ctx, l.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		if errors.Is(err, ErrBinaryNotFound) && l.Fallback != nil {
			return l.Fallback.Extract(ctx, path)
		}
		return "", wrapError(l.Name(), op, err, strings.TrimSpace(string(errb)))
	}
	return string(out), nil
}
