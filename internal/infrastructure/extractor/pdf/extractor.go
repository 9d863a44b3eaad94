package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

const (
	contentType = "application/pdf"
	maxBytes    = 64 << 20
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) IsSupported(ct string) bool {
	return ct == contentType
}

// Parse extracts the plain text layer. Scanned PDFs without text yield an
// empty, unsuccessful result.
func (e *Extractor) Parse(ctx context.Context, r io.Reader, _ string) (result domain.ParseResult, err error) {
	if err := ctx.Err(); err != nil {
		return domain.ParseResult{}, err
	}
	raw, err := io.ReadAll(io.LimitReader(r, maxBytes))
	if err != nil {
		return domain.ParseResult{}, fmt.Errorf("read pdf: %w", err)
	}

	// The pdf reader panics on some malformed cross-reference tables.
	defer func() {
		if recovered := recover(); recovered != nil {
			result = domain.ParseResult{}
			err = fmt.Errorf("parse pdf: %v", recovered)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return domain.ParseResult{}, fmt.Errorf("open pdf: %w", err)
	}
	textReader, err := reader.GetPlainText()
	if err != nil {
		return domain.ParseResult{}, fmt.Errorf("extract pdf text: %w", err)
	}
	text, err := io.ReadAll(textReader)
	if err != nil {
		return domain.ParseResult{}, fmt.Errorf("read pdf text: %w", err)
	}

	trimmed := strings.TrimSpace(string(text))
	return domain.ParseResult{
		Success:   trimmed != "",
		Text:      trimmed,
		PageCount: reader.NumPage(),
	}, nil
}
