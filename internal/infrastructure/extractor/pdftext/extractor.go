package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor reads the embedded text layer of a PDF. Scanned pages yield no text.
type Extractor struct {
	maxPages int
}

func NewExtractor(maxPages int) *Extractor {
	if maxPages <= 0 {
		maxPages = 50
	}
	return &Extractor{maxPages: maxPages}
}

func (e *Extractor) ExtractText(ctx context.Context, raw []byte) (text string, pages int, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	pages = reader.NumPage()
	if pages == 0 {
		return "", 0, errors.New("pdf has no pages")
	}

	var b strings.Builder
	for i := 1; i <= pages && i <= e.maxPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", pages, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", pages, fmt.Errorf("page %d text: %w", i, err)
		}
		b.WriteString(content)
		b.WriteByte('\n')
	}
	return b.String(), pages, nil
}
