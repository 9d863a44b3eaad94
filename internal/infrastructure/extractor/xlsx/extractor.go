package xlsx

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

const contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Extractor flattens every sheet into tab-separated lines. Each sheet counts as a page.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) IsSupported(ct string) bool {
	return ct == contentType
}

func (e *Extractor) Parse(ctx context.Context, r io.Reader, _ string) (domain.ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ParseResult{}, err
	}
	book, err := excelize.OpenReader(r)
	if err != nil {
		return domain.ParseResult{}, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		_ = book.Close()
	}()

	var b strings.Builder
	sheets := book.GetSheetList()
	for _, sheet := range sheets {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return domain.ParseResult{}, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		fmt.Fprintf(&b, "## %s\n", sheet)
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t ")
			if line != "" {
				b.WriteString(line)
				b.WriteByte('\n')
			}
		}
	}

	text := strings.TrimSpace(b.String())
	return domain.ParseResult{Success: text != "", Text: text, PageCount: len(sheets)}, nil
}
