package embedding

import (
	"context"
)

// TextEmbedder is the single-text embedding contract used by the indexer
// and the search layer.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DefaultMaxChars bounds the text sent for embedding.
const DefaultMaxChars = 3000

// Embedder binds a Client to one service URL and dimensionality and trims
// text to a character budget before embedding.
type Embedder struct {
	client   *Client
	baseURL  string
	dim      int
	maxChars int
}

// NewEmbedder creates an Embedder. maxChars <= 0 uses DefaultMaxChars.
func NewEmbedder(client *Client, baseURL string, dim, maxChars int) *Embedder {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Embedder{
		client:   client,
		baseURL:  baseURL,
		dim:      dim,
		maxChars: maxChars,
	}
}

// Embed truncates text to the character budget and embeds it.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.client.Embed(ctx, e.baseURL, Truncate(text, e.maxChars), e.dim)
}

// Dimension is the vector size this embedder produces.
func (e *Embedder) Dimension() int {
	return e.dim
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
