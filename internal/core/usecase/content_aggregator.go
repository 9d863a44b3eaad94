package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/core/ports"
)

var errUnsupportedContentType = errors.New("unsupported content type")

// ContentAggregator resolves analyzable text for documents. A document that
// cannot be read or parsed yields empty text; the batch always completes.
type ContentAggregator struct {
	storage ports.ObjectStorage
	parser  ports.DocumentParser
}

func NewContentAggregator(storage ports.ObjectStorage, parser ports.DocumentParser) *ContentAggregator {
	return &ContentAggregator{
		storage: storage,
		parser:  parser,
	}
}

func (a *ContentAggregator) Aggregate(ctx context.Context, docs []domain.Document) []domain.DocumentContent {
	contents := make([]domain.DocumentContent, 0, len(docs))
	for i := range docs {
		doc := &docs[i]
		content := domain.DocumentContent{
			DocumentID:  doc.ID,
			FileName:    doc.FileName,
			ContentType: doc.ContentType,
			PageCount:   doc.PageCount,
		}
		if doc.HasCachedText() {
			content.Text = doc.ExtractedText
			contents = append(contents, content)
			continue
		}

		result, err := a.Extract(ctx, doc)
		if err != nil {
			slog.Warn("document_extraction_skipped",
				"document_id", doc.ID,
				"content_type", doc.ContentType,
				"error", err,
			)
		} else {
			content.Text = result.Text
			if result.PageCount > 0 {
				content.PageCount = result.PageCount
			}
		}
		contents = append(contents, content)
	}
	return contents
}

// Extract reads the stored bytes of doc and parses them into text.
func (a *ContentAggregator) Extract(ctx context.Context, doc *domain.Document) (domain.ParseResult, error) {
	if a.parser == nil || !a.parser.IsSupported(doc.ContentType) {
		return domain.ParseResult{}, fmt.Errorf("%w: %q", errUnsupportedContentType, doc.ContentType)
	}
	if a.storage == nil {
		return domain.ParseResult{}, errors.New("object storage is not configured")
	}

	file, err := a.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return domain.ParseResult{}, fmt.Errorf("open stored document: %w", err)
	}
	defer file.Close()

	result, err := a.parser.Parse(ctx, file, doc.ContentType)
	if err != nil {
		return domain.ParseResult{}, fmt.Errorf("parse document: %w", err)
	}
	if !result.Success {
		return domain.ParseResult{}, errors.New("parser reported failure")
	}
	return result, nil
}
