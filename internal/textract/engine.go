package textract

import (
	"context"
	"fmt"
	"time"
)

// Config selects and configures the backends for a run.
type Config struct {
	Engine    string // tesseract, vision, documentai
	Pdftotext string
	Tesseract TesseractConfig
	DocAI     DocumentAIConfig
	MinChars  int
}

// New builds the dispatcher with the pure-Go text backend, the pdftotext
// layout backend and the configured OCR engine. The returned closer releases
// cloud clients.
func New(ctx context.Context, cfg Config) (*Service, func() error, error) {
	const op = "New"

	closer := func() error { return nil }

	var ocr Backend
	switch cfg.Engine {
	case "", "tesseract":
		ocr = NewTesseract(cfg.Tesseract, nil)
	case "vision":
		v, err := NewVisionOCR(ctx)
		if err != nil {
			return nil, closer, fmt.Errorf("%s: %w", op, err)
		}
		ocr, closer = v, v.Close
	case "documentai":
		if cfg.DocAI.Timeout <= 0 {
			cfg.DocAI.Timeout = cfg.Tesseract.PageTimeout
		}
		if cfg.DocAI.Timeout <= 0 {
			cfg.DocAI.Timeout = 60 * time.Second
		}
		d, err := NewDocumentAIOCR(ctx, cfg.DocAI)
		if err != nil {
			return nil, closer, fmt.Errorf("%s: %w", op, err)
		}
		ocr, closer = d, d.Close
	default:
		return nil, closer, fmt.Errorf("%s: unknown OCR engine %q", op, cfg.Engine)
	}

	return NewService(PDFText{}, NewLayout(cfg.Pdftotext), ocr, cfg.MinChars), closer, nil
}
