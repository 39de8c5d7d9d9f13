// Package textract turns invoice documents into raw text. It offers three
// backends (embedded text, column-aware text and OCR) and a dispatcher that
// picks one from a strategy's capability tag.
package textract

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/logger"
	"github.com/TascaBarea/ParsearFacturas-sub000/pkg/models"
)

// DefaultMinChars is the hybrid threshold below which tables output is
// considered empty and OCR is tried.
const DefaultMinChars = 100

// Backend produces raw text from a document on disk. Implementations open
// and close the file within Extract.
type Backend interface {
	Name() string
	Extract(ctx context.Context, path string) (string, error)
}

// Attempt records one backend call made by the dispatcher.
type Attempt struct {
	Backend models.Capability
	Engine  string
	Chars   int
	Err     error
}

// Result is the dispatcher's answer for one document.
type Result struct {
	Text     string
	Backend  models.Capability // backend whose text was returned
	Attempts []Attempt
}

// Empty reports whether no usable text was produced.
func (r Result) Empty() bool {
	return strings.TrimSpace(r.Text) == ""
}

// Service dispatches capability tags to backends.
type Service struct {
	text     Backend
	tables   Backend
	ocr      Backend
	minChars int
	log      zerolog.Logger
}

// NewService wires the three backends. Any backend may be nil, in which case
// requests for it yield empty text.
func NewService(text, tables, ocr Backend, minChars int) *Service {
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	return &Service{
		text:     text,
		tables:   tables,
		ocr:      ocr,
		minChars: minChars,
		log:      logger.WithComponent("textract"),
	}
}

// Text extracts text for path using the requested capability. Images always
// go to OCR. For hybrid, tables output shorter than the configured minimum
// falls back to OCR. Failures are logged and produce empty text.
func (s *Service) Text(ctx context.Context, path string, capability models.Capability) Result {
	if IsImage(path) {
		capability = models.CapOCR
	}

	var res Result
	switch capability {
	case models.CapText:
		s.try(ctx, &res, models.CapText, s.text, path)
	case models.CapTables:
		s.try(ctx, &res, models.CapTables, s.tables, path)
	case models.CapOCR:
		s.try(ctx, &res, models.CapOCR, s.ocr, path)
	case models.CapHybrid:
		s.try(ctx, &res, models.CapTables, s.tables, path)
		if len(strings.TrimSpace(res.Text)) < s.minChars {
			tablesText := res.Text
			s.try(ctx, &res, models.CapOCR, s.ocr, path)
			if res.Empty() && strings.TrimSpace(tablesText) != "" {
				res.Text, res.Backend = tablesText, models.CapTables
			}
		}
	default:
		s.log.Warn().Str("capability", string(capability)).Msg("Unknown capability, using text backend")
		s.try(ctx, &res, models.CapText, s.text, path)
	}
	return res
}

func (s *Service) try(ctx context.Context, res *Result, capability models.Capability, b Backend, path string) {
	attempt := Attempt{Backend: capability}
	if b == nil {
		attempt.Err = ErrUnsupportedFormat
		res.Attempts = append(res.Attempts, attempt)
		res.Text, res.Backend = "", capability
		return
	}
	attempt.Engine = b.Name()

	text, err := b.Extract(ctx, path)
	text = Normalize(text)
	attempt.Chars = len(text)
	attempt.Err = err
	res.Attempts = append(res.Attempts, attempt)
	res.Text, res.Backend = text, capability

	if err != nil {
		s.log.Warn().
			Err(err).
			Str("document", filepath.Base(path)).
			Str("backend", b.Name()).
			Msg("Text backend failed, continuing with empty text")
	} else {
		s.log.Debug().
			Str("document", filepath.Base(path)).
			Str("backend", b.Name()).
			Int("chars", len(text)).
			Msg("Text extracted")
	}
}

// IsImage reports whether path is a raster image rather than a PDF.
func IsImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".tif", ".tiff":
		return true
	}
	return false
}

// IsSupported reports whether path has an extension the pipeline accepts.
func IsSupported(path string) bool {
	return IsImage(path) || strings.EqualFold(filepath.Ext(path), ".pdf")
}
