package html

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) IsSupported(ct string) bool {
	return ct == "text/html" || ct == "application/xhtml+xml"
}

func (e *Extractor) Parse(ctx context.Context, r io.Reader, _ string) (domain.ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ParseResult{}, err
	}
	root, err := html.Parse(r)
	if err != nil {
		return domain.ParseResult{}, fmt.Errorf("parse html: %w", err)
	}

	var lines []string
	collectText(root, &lines)
	text := strings.Join(lines, "\n")
	return domain.ParseResult{Success: text != "", Text: text, PageCount: 1}, nil
}

func collectText(n *html.Node, lines *[]string) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "head", "template":
			return
		}
	}
	if n.Type == html.TextNode {
		if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
			*lines = append(*lines, text)
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, lines)
	}
}
