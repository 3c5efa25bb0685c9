// Package ingest turns a batch of uploaded PDF files into one raw text blob.
package ingest

import (
	"context"
	"strings"

	"ai-pdfchat/internal/pkg/logger"
	"ai-pdfchat/pkg/apperror"
)

// Document is one uploaded file held in memory.
type Document struct {
	Name    string
	Content []byte
}

// PageExtractor returns the text of every page of a document, in page order.
// A page without a text layer yields "".
type PageExtractor interface {
	ExtractPages(ctx context.Context, doc Document) ([]string, error)
}

type Result struct {
	Text    string
	Files   int // documents that contributed
	Pages   int
	Skipped []*apperror.IngestionError
}

// Blank reports whether the batch produced no usable text.
func (r *Result) Blank() bool {
	return strings.TrimSpace(r.Text) == ""
}

type Ingestor struct {
	extractor PageExtractor
	logger    logger.ILogger
}

func NewIngestor(extractor PageExtractor, log logger.ILogger) *Ingestor {
	return &Ingestor{extractor: extractor, logger: log}
}

// Ingest concatenates the page texts of docs in order with no separator.
// Unreadable documents are skipped and reported in Result.Skipped; only a
// cancelled context fails the batch.
func (i *Ingestor) Ingest(ctx context.Context, docs []Document) (*Result, error) {
	res := &Result{}
	var sb strings.Builder

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pages, err := i.extractor.ExtractPages(ctx, doc)
		if err != nil {
			i.logger.Warn("INGEST", "Skipping unreadable document", map[string]interface{}{
				"file":  doc.Name,
				"error": err.Error(),
			})
			res.Skipped = append(res.Skipped, &apperror.IngestionError{File: doc.Name, Err: err})
			continue
		}

		for _, page := range pages {
			sb.WriteString(page)
		}
		res.Files++
		res.Pages += len(pages)
	}

	res.Text = sb.String()

	i.logger.Debug("INGEST", "Batch extracted", map[string]interface{}{
		"files":   res.Files,
		"skipped": len(res.Skipped),
		"pages":   res.Pages,
		"chars":   len(res.Text),
	})

	return res, nil
}
