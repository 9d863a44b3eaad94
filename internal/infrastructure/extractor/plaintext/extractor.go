package plaintext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

// maxBytes caps how much of a text file is read into memory.
const maxBytes = 32 << 20

var supported = map[string]struct{}{
	"text/plain":       {},
	"text/markdown":    {},
	"text/csv":         {},
	"application/json": {},
	"application/xml":  {},
	"text/xml":         {},
}

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) IsSupported(contentType string) bool {
	_, ok := supported[contentType]
	return ok
}

func (e *Extractor) Parse(ctx context.Context, r io.Reader, contentType string) (domain.ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ParseResult{}, err
	}
	raw, err := io.ReadAll(io.LimitReader(r, maxBytes))
	if err != nil {
		return domain.ParseResult{}, fmt.Errorf("read text document: %w", err)
	}
	if !utf8.Valid(raw) {
		return domain.ParseResult{}, errors.New("text document is not valid utf-8")
	}

	text := strings.TrimSpace(strings.TrimPrefix(string(raw), "\uFEFF"))
	return domain.ParseResult{Success: true, Text: text, PageCount: 1}, nil
}
