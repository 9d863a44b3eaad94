package chunking

import (
	"strings"
	"testing"
)

func TestSplitOverlapsWindows(t *testing.T) {
	chunks := NewSplitter(4, 2).Split("abcdefgh")
	want := []string{"abcd", "cdef", "efgh"}
	if strings.Join(chunks, ",") != strings.Join(want, ",") {
		t.Fatalf("Split() = %v, want %v", chunks, want)
	}
}

func TestSplitKeepsWordsWhole(t *testing.T) {
	chunks := NewSplitter(12, 0).Split("policy review access control")
	want := []string{"policy", "review", "access", "control"}
	if strings.Join(chunks, ",") != strings.Join(want, ",") {
		t.Fatalf("Split() = %v, want %v", chunks, want)
	}
}

func TestBoundLeavesShortTextAlone(t *testing.T) {
	out, cut := Bound("  short policy  ", 100)
	if cut || out != "short policy" {
		t.Fatalf("Bound() = %q, %v", out, cut)
	}
}

func TestBoundStaysWithinBudget(t *testing.T) {
	text := strings.Repeat("access control review ", 200)
	out, cut := Bound(text, 400)
	if !cut {
		t.Fatalf("expected text to be cut")
	}
	if n := len([]rune(out)); n == 0 || n > 400 {
		t.Fatalf("expected 1..400 runes, got %d", n)
	}
}

func TestBoundDisabledWithZeroBudget(t *testing.T) {
	text := strings.Repeat("x", 5000)
	if out, cut := Bound(text, 0); cut || len(out) != 5000 {
		t.Fatalf("expected unbounded text, got %d runes cut=%v", len(out), cut)
	}
}
