package extractor

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/core/ports"
	"github.com/kirillkom/compliance-auditor/internal/infrastructure/extractor/html"
	"github.com/kirillkom/compliance-auditor/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/compliance-auditor/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/compliance-auditor/internal/infrastructure/extractor/xlsx"
)

// Registry dispatches to the first backend that supports a content type.
type Registry struct {
	backends []ports.DocumentParser
}

func NewRegistry(backends ...ports.DocumentParser) *Registry {
	return &Registry{backends: backends}
}

// NewDefaultRegistry wires every built-in backend.
func NewDefaultRegistry() *Registry {
	return NewRegistry(
		plaintext.NewExtractor(),
		pdf.NewExtractor(),
		xlsx.NewExtractor(),
		html.NewExtractor(),
	)
}

func (r *Registry) IsSupported(contentType string) bool {
	return r.backend(contentType) != nil
}

func (r *Registry) Parse(ctx context.Context, reader io.Reader, contentType string) (domain.ParseResult, error) {
	backend := r.backend(contentType)
	if backend == nil {
		return domain.ParseResult{}, fmt.Errorf("no parser for content type %q", contentType)
	}
	return backend.Parse(ctx, reader, normalizeContentType(contentType))
}

func (r *Registry) backend(contentType string) ports.DocumentParser {
	ct := normalizeContentType(contentType)
	for _, backend := range r.backends {
		if backend.IsSupported(ct) {
			return backend
		}
	}
	return nil
}

func normalizeContentType(contentType string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
