package rerank

import (
	"regexp"
	"strconv"
	"strings"
)

// NoMatchMarker is the phrase the model answers with when no candidate fits.
const NoMatchMarker = "لا يوجد جواب"

// ResponseParser turns free model output into 0-based candidate indices.
// noMatch is true only when the model explicitly said nothing is relevant;
// an empty result without it means the reply could not be used.
type ResponseParser interface {
	Parse(text string, n int) (indices []int, noMatch bool)
}

var numberPattern = regexp.MustCompile(`\d+`)

// MarkerParser reads a comma separated list of 1-based positions and treats
// any answer containing Marker as an explicit empty result.
type MarkerParser struct {
	Marker string
}

// DefaultParser recognises NoMatchMarker.
var DefaultParser = MarkerParser{Marker: NoMatchMarker}

// Parse keeps positions inside [0, n) in the order given, dropping repeats.
func (p MarkerParser) Parse(text string, n int) ([]int, bool) {
	if p.Marker != "" && strings.Contains(text, p.Marker) {
		return []int{}, true
	}

	out := []int{}
	seen := make(map[int]bool)
	for _, m := range numberPattern.FindAllString(text, -1) {
		pos, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		idx := pos - 1
		if idx < 0 || idx >= n || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	return out, false
}
