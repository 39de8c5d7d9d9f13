package textract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/logger"
)

// TesseractConfig configures the local OCR engine.
type TesseractConfig struct {
	Pdftoppm    string        // binary name or absolute path; default "pdftoppm"
	Tesseract   string        // binary name or absolute path; default "tesseract"
	Lang        string        // language pack, default "spa"
	TessdataDir string        // optional --tessdata-dir
	DPI         int           // rasterization DPI, default 300
	MaxPages    int           // 0 = no limit
	PageTimeout time.Duration // per page budget for render + recognition, default 60s
	Enhance     bool          // grayscale + contrast + sharpen before recognition
}

// Tesseract renders each PDF page with pdftoppm and recognizes it with tesseract.
type Tesseract struct {
	cfg    TesseractConfig
	runner Runner
	log    zerolog.Logger
}

// NewTesseract creates the OCR backend. runner may be nil to use os/exec.
func NewTesseract(cfg TesseractConfig, runner Runner) *Tesseract {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "spa"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 60 * time.Second
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Tesseract{cfg: cfg, runner: runner, log: logger.WithComponent("tesseract")}
}

func (t *Tesseract) Name() string { return "tesseract" }

// Extract implements Backend. Pages that fail are skipped; the error of the
// last failing page is returned alongside whatever text was recognized.
func (t *Tesseract) Extract(ctx context.Context, path string) (string, error) {
	const op = "Extract"

	tmpDir, err := os.MkdirTemp("", "facturas-ocr-*")
	if err != nil {
		return "", wrapError(t.Name(), op, err, "failed to create temp dir")
	}
	defer os.RemoveAll(tmpDir)

	pages := []string{path}
	if !IsImage(path) {
		pages, err = t.render(ctx, path, tmpDir)
		if err != nil {
			return "", err
		}
	}

	var b strings.Builder
	var lastErr error
	for i, img := range pages {
		if err := ctx.Err(); err != nil {
			return b.String(), err
		}
		if t.cfg.Enhance {
			enhanced, err := enhance(img, filepath.Join(tmpDir, fmt.Sprintf("enh-%03d.png", i+1)))
			if err != nil {
				t.log.Debug().Err(err).Str("page", img).Msg("Enhancement failed, using original image")
			} else {
				img = enhanced
			}
		}

		txt, err := t.recognize(ctx, img)
		if err != nil {
			if errors.Is(err, ErrBinaryNotFound) {
				return "", err
			}
			lastErr = err
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(txt)
	}

	if b.Len() == 0 && lastErr == nil {
		lastErr = wrapError(t.Name(), op, ErrEmptyDocument, path)
	}
	return b.String(), lastErr
}

// render rasterizes the PDF into PNG pages: pdftoppm -r DPI -png <in> <prefix>.
func (t *Tesseract) render(ctx context.Context, path, dir string) ([]string, error) {
	const op = "Render"

	renderCtx, cancel := context.WithTimeout(ctx, t.cfg.PageTimeout*time.Duration(max(1, t.cfg.MaxPages)))
	defer cancel()

	prefix := filepath.Join(dir, "page")
	args := []string{"-r", strconv.Itoa(t.cfg.DPI), "-png"}
	if t.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(t.cfg.MaxPages))
	}
	args = append(args, path, prefix)

	if _, errb, err := t.runner.Run(renderCtx, t.cfg.Pdftoppm, args...); err != nil {
		return nil, wrapError(t.Name(), op, err, strings.TrimSpace(string(errb)))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, wrapError(t.Name(), op, ErrEmptyDocument, "pdftoppm produced no images")
	}
	if t.cfg.MaxPages > 0 && len(matches) > t.cfg.MaxPages {
		matches = matches[:t.cfg.MaxPages]
	}
	return matches, nil
}

// recognize runs tesseract <img> stdout -l <lang> under the page timeout.
func (t *Tesseract) recognize(ctx context.Context, img string) (string, error) {
	const op = "Recognize"

	pageCtx, cancel := context.WithTimeout(ctx, t.cfg.PageTimeout)
	defer cancel()

	args := []string{img, "stdout", "-l", t.cfg.Lang}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	out, errb, err := t.runner.Run(pageCtx, t.cfg.Tesseract, args...)
	if err != nil {
		if errors.Is(pageCtx.Err(), context.DeadlineExceeded) {
			err = ErrPageTimeout
		}
		return "", wrapError(t.Name(), op, err, strings.TrimSpace(string(errb)))
	}
	return string(out), nil
}

// enhance writes a grayscale, contrast-boosted and sharpened copy of src to dst.
func enhance(src, dst string) (string, error) {
	img, err := imaging.Open(src)
	if err != nil {
		return "", err
	}
	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, 30)
	out = imaging.Sharpen(out, 1.2)
	out = imaging.AdjustGamma(out, 1.1)
	if err := imaging.Save(out, dst); err != nil {
		return "", err
	}
	return dst, nil
}
