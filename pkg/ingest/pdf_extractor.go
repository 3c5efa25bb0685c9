package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

var errNotPDF = errors.New("missing %PDF header")

// PDFExtractor reads documents with ledongthuc/pdf entirely from memory.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) ExtractPages(ctx context.Context, doc Document) (pages []string, err error) {
	if !bytes.HasPrefix(doc.Content, []byte("%PDF")) {
		return nil, errNotPDF
	}

	// the parser panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(doc.Content), int64(len(doc.Content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := r.NumPage()
	pages = make([]string, 0, total)

	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}

		text, err := p.GetPlainText(pageFonts(p))
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}

	return pages, nil
}

// pageFonts loads the page's font resources so text is decoded with each
// font's encoding. Font names are page-scoped, so nothing is shared across pages.
func pageFonts(p pdf.Page) map[string]*pdf.Font {
	names := p.Fonts()
	fonts := make(map[string]*pdf.Font, len(names))
	for _, name := range names {
		f := p.Font(name)
		fonts[name] = &f
	}
	return fonts
}
