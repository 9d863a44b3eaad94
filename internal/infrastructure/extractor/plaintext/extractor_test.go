package plaintext

import (
	"context"
	"strings"
	"testing"
)

func TestParseStripsBOMAndWhitespace(t *testing.T) {
	result, err := NewExtractor().Parse(context.Background(), strings.NewReader("\uFEFF  access policy \n"), "text/plain")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !result.Success || result.Text != "access policy" || result.PageCount != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestParseRejectsBinary(t *testing.T) {
	_, err := NewExtractor().Parse(context.Background(), strings.NewReader(string([]byte{0xff, 0xfe, 0x00})), "text/plain")
	if err == nil {
		t.Fatalf("expected error for invalid utf-8")
	}
}

func TestIsSupported(t *testing.T) {
	e := NewExtractor()
	if !e.IsSupported("text/markdown") || e.IsSupported("application/pdf") {
		t.Fatalf("unexpected support matrix")
	}
}
