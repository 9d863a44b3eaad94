package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

func TestAggregatePrefersCachedText(t *testing.T) {
	storage := newStorageFake()
	parser := &parserFake{}
	aggregator := NewContentAggregator(storage, parser)

	docs := []domain.Document{{ID: "d-1", ContentType: "text/plain", ExtractedText: "cached", StoragePath: "missing"}}
	contents := aggregator.Aggregate(context.Background(), docs)

	if len(contents) != 1 || contents[0].Text != "cached" {
		t.Fatalf("unexpected contents %+v", contents)
	}
	if parser.calls != 0 {
		t.Fatalf("expected parser not to be called")
	}
}

func TestAggregateContinuesPastBadDocuments(t *testing.T) {
	storage := newStorageFake()
	storage.files["good"] = "hello world"
	storage.files["bad"] = "corrupt bytes"
	aggregator := NewContentAggregator(storage, &parserFake{})

	docs := []domain.Document{
		{ID: "d-bad", ContentType: "text/plain", StoragePath: "bad"},
		{ID: "d-missing", ContentType: "text/plain", StoragePath: "gone"},
		{ID: "d-binary", ContentType: "image/png", StoragePath: "good"},
		{ID: "d-good", ContentType: "text/plain", StoragePath: "good"},
	}
	contents := aggregator.Aggregate(context.Background(), docs)

	if len(contents) != 4 {
		t.Fatalf("expected one entry per document, got %d", len(contents))
	}
	for _, content := range contents[:3] {
		if content.Text != "" {
			t.Fatalf("expected empty text for %s, got %q", content.DocumentID, content.Text)
		}
	}
	if contents[3].Text != "hello world" || contents[3].PageCount != 1 {
		t.Fatalf("unexpected good content %+v", contents[3])
	}
}

func TestExtractReportsUnsupportedContentType(t *testing.T) {
	aggregator := NewContentAggregator(newStorageFake(), &parserFake{})
	_, err := aggregator.Extract(context.Background(), &domain.Document{ContentType: "image/png"})
	if !errors.Is(err, errUnsupportedContentType) {
		t.Fatalf("expected unsupported content type, got %v", err)
	}
}
