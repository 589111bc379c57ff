package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitBySize cuts s into pieces of at most size runes. A piece ends at the
// last whitespace inside its window when that keeps at least half the
// window; otherwise the cut is hard. Pieces are trimmed and empty pieces
// dropped.
func SplitBySize(s string, size int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if size <= 0 || utf8.RuneCountInString(s) <= size {
		return []string{s}
	}

	runes := []rune(s)
	var out []string
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else if cut := lastSpace(runes[start:end]); cut >= size/2 {
			end = start + cut
		}

		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
		start = end
	}
	return out
}

func lastSpace(window []rune) int {
	for i := len(window) - 1; i > 0; i-- {
		if unicode.IsSpace(window[i]) {
			return i
		}
	}
	return -1
}

// UsefulFilter decides whether a crawled chunk carries enough real text to
// be worth embedding.
type UsefulFilter struct {
	// MinLength is the minimum trimmed length in runes.
	MinLength int
	// Script, when set, requires at least MinScriptRunes runes of that script.
	Script         *unicode.RangeTable
	MinScriptRunes int
}

// DefaultUsefulFilter keeps chunks of 30+ runes with at least 3 Arabic letters.
var DefaultUsefulFilter = UsefulFilter{
	MinLength:      30,
	Script:         unicode.Arabic,
	MinScriptRunes: 3,
}

// TooShort reports whether s is below MinLength.
func (f UsefulFilter) TooShort(s string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(s)) < f.MinLength
}

// Useful reports whether s passes both the length and script checks.
func (f UsefulFilter) Useful(s string) bool {
	if f.TooShort(s) {
		return false
	}
	if f.Script == nil || f.MinScriptRunes <= 0 {
		return true
	}
	n := 0
	for _, r := range s {
		if unicode.Is(f.Script, r) {
			n++
			if n >= f.MinScriptRunes {
				return true
			}
		}
	}
	return false
}
