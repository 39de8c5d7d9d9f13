package textract

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFText reads the embedded text layer with a pure-Go PDF parser.
//
// In plain mode it returns the content stream text with line breaks and no
// layout inference. In rows mode it rebuilds each visual row by joining its
// words with spaces, which keeps simple tables on one line; the layout
// backend uses it when pdftotext is unavailable.
type PDFText struct {
	Rows bool
}

func (p PDFText) Name() string {
	if p.Rows {
		return "pdftext-rows"
	}
	return "pdftext"
}

// Extract implements Backend.
func (p PDFText) Extract(ctx context.Context, path string) (text string, err error) {
	const op = "Extract"

	if IsImage(path) {
		return "", wrapError(p.Name(), op, ErrUnsupportedFormat, path)
	}

	defer func() {
		// The parser panics on some malformed cross-reference tables.
		if r := recover(); r != nil {
			text, err = "", wrapError(p.Name(), op, fmt.Errorf("malformed PDF: %v", r), path)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", wrapError(p.Name(), op, err, "failed to open PDF")
	}
	defer f.Close()

	if !p.Rows {
		plain, err := r.GetPlainText()
		if err != nil {
			return "", wrapError(p.Name(), op, err, "failed to read text layer")
		}
		b, err := io.ReadAll(plain)
		if err != nil {
			return "", wrapError(p.Name(), op, err, "failed to read text layer")
		}
		return string(b), nil
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return sb.String(), err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return sb.String(), wrapError(p.Name(), op, err, fmt.Sprintf("page %d", i))
		}
		if i > 1 {
			sb.WriteString("\f")
		}
		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				if s := strings.TrimSpace(word.S); s != "" {
					words = append(words, s)
				}
			}
			if len(words) > 0 {
				sb.WriteString(strings.Join(words, " "))
				sb.WriteString("\n")
			}
		}
	}
	return sb.String(), nil
}
