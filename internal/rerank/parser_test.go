package rerank

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkerParser_Parse(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		n       int
		want    []int
		noMatch bool
	}{
		{name: "comma list", text: "2,5,1", n: 5, want: []int{1, 4, 0}},
		{name: "spaces and prose", text: "The best are 3 and 1.", n: 3, want: []int{2, 0}},
		{name: "out of range dropped", text: "0, 4, 2, 9", n: 3, want: []int{1}},
		{name: "duplicates dropped", text: "2,2,1,2", n: 3, want: []int{1, 0}},
		{name: "marker wins", text: "لا يوجد جواب دقيق 1", n: 3, want: []int{}, noMatch: true},
		{name: "no numbers", text: "none of them", n: 3, want: []int{}},
		{name: "only out of range", text: "99", n: 3, want: []int{}},
		{name: "empty", text: "", n: 3, want: []int{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, noMatch := DefaultParser.Parse(tc.text, tc.n)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.noMatch, noMatch)
		})
	}
}

func TestMarkerParser_CustomMarker(t *testing.T) {
	p := MarkerParser{Marker: "NONE"}

	got, noMatch := p.Parse("NONE", 3)
	assert.Empty(t, got)
	assert.True(t, noMatch)

	got, noMatch = p.Parse("1", 3)
	assert.Equal(t, []int{0}, got)
	assert.False(t, noMatch)
}
