package chunking

import (
	"strings"
	"unicode"
)

// Splitter cuts long document text into overlapping rune windows.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// Split walks the text in ChunkSize windows, pulling each cut back to the last
// whitespace in the second half of the window so words stay whole.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); {
		end := min(start+s.ChunkSize, len(runes))
		if end < len(runes) {
			end = wordBoundary(runes, start, end)
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func wordBoundary(runes []rune, start, end int) int {
	for i := end; i > start+(end-start)/2; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

// Bound keeps whole non-overlapping chunks of text until maxRunes is reached and
// reports whether anything was cut. A non-positive budget disables bounding.
func Bound(text string, maxRunes int) (string, bool) {
	text = strings.TrimSpace(text)
	if maxRunes <= 0 || len([]rune(text)) <= maxRunes {
		return text, false
	}

	chunkSize := maxRunes / 4
	if chunkSize < 1 {
		chunkSize = maxRunes
	}
	splitter := NewSplitter(chunkSize, 0)

	var b strings.Builder
	used := 0
	for _, chunk := range splitter.Split(text) {
		size := len([]rune(chunk))
		if used > 0 {
			size++
		}
		if used+size > maxRunes {
			break
		}
		if used > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(chunk)
		used += size
	}
	return b.String(), true
}
