package textract_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/textract"
	"github.com/TascaBarea/ParsearFacturas-sub000/pkg/models"
)

type fakeBackend struct {
	name  string
	text  string
	err   error
	calls int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Extract(ctx context.Context, path string) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestServiceHybridUsesTablesWhenLongEnough(t *testing.T) {
	tables := &fakeBackend{name: "tables", text: strings.Repeat("FACTURA 1 ", 20)}
	ocr := &fakeBackend{name: "ocr", text: "ocr text"}
	svc := textract.NewService(&fakeBackend{name: "text"}, tables, ocr, 100)

	res := svc.Text(context.Background(), "a.pdf", models.CapHybrid)
	assert.Equal(t, models.CapTables, res.Backend)
	assert.Equal(t, 0, ocr.calls)
	assert.Len(t, res.Attempts, 1)
}

func TestServiceHybridFallsBackToOCR(t *testing.T) {
	tables := &fakeBackend{name: "tables", text: "short"}
	ocr := &fakeBackend{name: "ocr", text: "TOTAL 32.40 €\nIVA 10%"}
	svc := textract.NewService(nil, tables, ocr, 100)

	res := svc.Text(context.Background(), "a.pdf", models.CapHybrid)
	assert.Equal(t, models.CapOCR, res.Backend)
	assert.Equal(t, "TOTAL 32.40 €\nIVA 10%", res.Text)
	assert.Len(t, res.Attempts, 2)
}

func TestServiceHybridKeepsShortTablesWhenOCRFails(t *testing.T) {
	tables := &fakeBackend{name: "tables", text: "TOTAL 10,00"}
	ocr := &fakeBackend{name: "ocr", err: textract.ErrBinaryNotFound}
	svc := textract.NewService(nil, tables, ocr, 100)

	res := svc.Text(context.Background(), "a.pdf", models.CapHybrid)
	assert.Equal(t, models.CapTables, res.Backend)
	assert.Equal(t, "TOTAL 10,00", res.Text)
	assert.ErrorIs(t, res.Attempts[1].Err, textract.ErrBinaryNotFound)
}

func TestServiceFailuresYieldEmptyText(t *testing.T) {
	svc := textract.NewService(&fakeBackend{name: "text", err: errors.New("broken xref")}, nil, nil, 0)

	res := svc.Text(context.Background(), "a.pdf", models.CapText)
	assert.True(t, res.Empty())

	res = svc.Text(context.Background(), "a.pdf", models.CapOCR)
	assert.True(t, res.Empty())
	assert.ErrorIs(t, res.Attempts[0].Err, textract.ErrUnsupportedFormat)
}

func TestServiceRoutesImagesToOCR(t *testing.T) {
	text := &fakeBackend{name: "text", text: "never"}
	ocr := &fakeBackend{name: "ocr", text: "ticket"}
	svc := textract.NewService(text, nil, ocr, 0)

	res := svc.Text(context.Background(), "ticket.JPG", models.CapText)
	assert.Equal(t, models.CapOCR, res.Backend)
	assert.Equal(t, 0, text.calls)
}

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	calls []call
	run   func(name string, args []string) ([]byte, []byte, error)
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.calls = append(r.calls, call{name: name, args: args})
	return r.run(name, args)
}

func TestLayoutRunsPdftotext(t *testing.T) {
	runner := &fakeRunner{run: func(name string, args []string) ([]byte, []byte, error) {
		return []byte("REF   DESCRIPCION   IMPORTE\n"), nil, nil
	}}
	l := &textract.Layout{Pdftotext: "/usr/bin/pdftotext", Runner: runner}

	out, err := l.Extract(context.Background(), "f.pdf")
	require.NoError(t, err)
	assert.Equal(t, "REF   DESCRIPCION   IMPORTE\n", out)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8", "-eol", "unix", "f.pdf", "-"}, runner.calls[0].args)
}

func TestLayoutFallsBackWhenBinaryMissing(t *testing.T) {
	runner := &fakeRunner{run: func(string, []string) ([]byte, []byte, error) {
		return nil, nil, textract.ErrBinaryNotFound
	}}
	fallback := &fakeBackend{name: "rows", text: "row text"}
	l := &textract.Layout{Pdftotext: "pdftotext", Runner: runner, Fallback: fallback}

	out, err := l.Extract(context.Background(), "f.pdf")
	require.NoError(t, err)
	assert.Equal(t, "row text", out)
}

func TestExecRunnerMissingAbsolutePath(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "poppler", "pdftotext")

	_, _, err := textract.ExecRunner{}.Run(context.Background(), missing, "-v")
	assert.ErrorIs(t, err, textract.ErrBinaryNotFound)

	fallback := &fakeBackend{name: "rows", text: "row text"}
	l := &textract.Layout{Pdftotext: missing, Runner: textract.ExecRunner{}, Fallback: fallback}

	out, err := l.Extract(context.Background(), "f.pdf")
	require.NoError(t, err)
	assert.Equal(t, "row text", out)
}

func TestLayoutRejectsImages(t *testing.T) {
	l := textract.NewLayout("")
	_, err := l.Extract(context.Background(), "scan.png")
	assert.ErrorIs(t, err, textract.ErrUnsupportedFormat)
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 3)
	}
	img.Set(1, 1, color.White)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestTesseractRendersAndRecognizesEachPage(t *testing.T) {
	runner := &fakeRunner{}
	runner.run = func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftoppm":
			prefix := args[len(args)-1]
			writePNG(t, prefix+"-1.png")
			writePNG(t, prefix+"-2.png")
			return nil, nil, nil
		case "tesseract":
			return []byte("page " + filepath.Base(args[0])), nil, nil
		}
		return nil, nil, errors.New("unexpected command")
	}

	ocr := textract.NewTesseract(textract.TesseractConfig{DPI: 200, Enhance: true, PageTimeout: time.Second}, runner)
	out, err := ocr.Extract(context.Background(), "scan.pdf")
	require.NoError(t, err)

	pages := strings.Split(out, "\n\f\n")
	require.Len(t, pages, 2)
	assert.Contains(t, pages[0], "enh-001.png")
	assert.Contains(t, pages[1], "enh-002.png")

	require.Len(t, runner.calls, 3)
	assert.Equal(t, []string{"-r", "200", "-png"}, runner.calls[0].args[:3])
	assert.Equal(t, []string{"stdout", "-l", "spa"}, runner.calls[1].args[1:4])
}

func TestTesseractMissingBinary(t *testing.T) {
	runner := &fakeRunner{run: func(name string, args []string) ([]byte, []byte, error) {
		return nil, nil, textract.ErrBinaryNotFound
	}}
	ocr := textract.NewTesseract(textract.TesseractConfig{}, runner)

	out, err := ocr.Extract(context.Background(), "ticket.jpg")
	assert.Empty(t, out)
	assert.ErrorIs(t, err, textract.ErrBinaryNotFound)
}

func TestTesseractKeepsRecognizedPagesWhenOneFails(t *testing.T) {
	n := 0
	runner := &fakeRunner{}
	runner.run = func(name string, args []string) ([]byte, []byte, error) {
		if name == "pdftoppm" {
			prefix := args[len(args)-1]
			writePNG(t, prefix+"-1.png")
			writePNG(t, prefix+"-2.png")
			return nil, nil, nil
		}
		n++
		if n == 2 {
			return nil, []byte("bad image"), errors.New("exit status 1")
		}
		return []byte("TOTAL 32.40"), nil, nil
	}
	ocr := textract.NewTesseract(textract.TesseractConfig{}, runner)

	out, err := ocr.Extract(context.Background(), "scan.pdf")
	assert.Equal(t, "TOTAL 32.40", out)
	var be *textract.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "Recognize", be.Op)
}

func TestNormalize(t *testing.T) {
	in := "\ufeffFACTURA   \r\nLinea 1\t\n\n\n\nTOTAL ||||||||\n"
	assert.Equal(t, "FACTURA\nLinea 1\n\nTOTAL", textract.Normalize(in))
	assert.Equal(t, "uno\n", textract.FirstPage("uno\n\fdos"))
}

func TestIsSupported(t *testing.T) {
	assert.True(t, textract.IsSupported("a.PDF"))
	assert.True(t, textract.IsSupported("b.jpeg"))
	assert.False(t, textract.IsSupported("c.docx"))
}
