// Package search answers similarity queries over the vector collections:
// single-collection search with over-fetch and score filtering, product and
// bot FAQ lookups, and the unified cross-collection search.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kaleem-ai/vectorsearch/internal/embedding"
	"github.com/kaleem-ai/vectorsearch/internal/logger"
	"github.com/kaleem-ai/vectorsearch/internal/storage"
)

// ErrInvalidInput is returned for an empty query, a missing merchant on a
// merchant-scoped collection or a non-positive topK.
var ErrInvalidInput = errors.New("invalid search input")

// DefaultOverfetch multiplies topK when querying the store.
const DefaultOverfetch = 4

// VectorSearcher is the read side of the vector store.
type VectorSearcher interface {
	Search(ctx context.Context, collection string, q storage.SearchQuery) ([]storage.ScoredPoint, error)
}

// Candidate is a filtered search hit.
type Candidate struct {
	ID      string
	Type    string
	Payload map[string]any
	Score   float64
	// RerankRank is the 0-based position assigned by the reranker, nil when
	// the candidate was not reranked.
	RerankRank *int
}

// Options tune score filtering and over-fetch.
type Options struct {
	MinScore          float64
	Overfetch         int
	MinScoreOverrides map[string]float64
}

// Searcher runs over-fetching similarity queries against one collection at
// a time.
type Searcher struct {
	embedder embedding.TextEmbedder
	store    VectorSearcher
	opts     Options
	logger   *zap.Logger
}

// NewSearcher creates a Searcher. Overfetch <= 0 uses DefaultOverfetch.
func NewSearcher(embedder embedding.TextEmbedder, store VectorSearcher, opts Options, log *zap.Logger) *Searcher {
	if opts.Overfetch <= 0 {
		opts.Overfetch = DefaultOverfetch
	}
	return &Searcher{
		embedder: embedder,
		store:    store,
		opts:     opts,
		logger:   logger.OrNop(log),
	}
}

// MinScore is the score threshold of a collection.
func (s *Searcher) MinScore(collection string) float64 {
	if v, ok := s.opts.MinScoreOverrides[collection]; ok {
		return v
	}
	return s.opts.MinScore
}

// merchantScoped reports whether a collection is partitioned by merchant.
func merchantScoped(collection string) bool {
	return collection != storage.CollectionBotFAQs
}

// Query embeds text and returns up to topK × overfetch candidates scoring at
// least the collection threshold, in store order.
func (s *Searcher) Query(ctx context.Context, collection, text, merchantID string, topK int) ([]Candidate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidInput)
	}
	if err := validate(collection, merchantID, topK); err != nil {
		return nil, err
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.search(ctx, collection, vector, merchantID, topK*s.opts.Overfetch)
}

// QueryVector is Query with a precomputed query vector.
func (s *Searcher) QueryVector(ctx context.Context, collection string, vector []float32, merchantID string, topK int) ([]Candidate, error) {
	if err := validate(collection, merchantID, topK); err != nil {
		return nil, err
	}
	return s.search(ctx, collection, vector, merchantID, topK*s.opts.Overfetch)
}

func validate(collection, merchantID string, topK int) error {
	if topK <= 0 {
		return fmt.Errorf("%w: topK must be positive", ErrInvalidInput)
	}
	if merchantScoped(collection) && strings.TrimSpace(merchantID) == "" {
		return fmt.Errorf("%w: merchant id is required for %s", ErrInvalidInput, collection)
	}
	return nil
}

func (s *Searcher) search(ctx context.Context, collection string, vector []float32, merchantID string, limit int) ([]Candidate, error) {
	q := storage.SearchQuery{Vector: vector, Limit: limit}
	if merchantScoped(collection) {
		f := storage.Where(storage.FieldMerchantID, merchantID)
		q.Filter = &f
	}

	points, err := s.store.Search(ctx, collection, q)
	if err != nil {
		return nil, err
	}

	minScore := s.MinScore(collection)
	out := make([]Candidate, 0, len(points))
	for _, p := range points {
		if p.Score < minScore {
			continue
		}
		out = append(out, Candidate{
			ID:      p.ID,
			Type:    collection,
			Payload: p.Payload,
			Score:   p.Score,
		})
	}
	s.logger.Debug("Similarity search",
		zap.String("collection", collection),
		zap.Int("fetched", len(points)),
		zap.Int("kept", len(out)),
		zap.Float64("min_score", minScore),
	)
	return out, nil
}

// rankedOrder keeps the valid, distinct indices in the order given, at most
// limit of them.
func rankedOrder(indices []int, n, limit int) []int {
	out := make([]int, 0, min(limit, len(indices)))
	seen := make(map[int]bool, len(indices))
	for _, i := range indices {
		if len(out) == limit {
			break
		}
		if i < 0 || i >= n || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	return out
}

// assignRanks records each candidate's position in a reranked order.
func assignRanks(candidates []Candidate, order []int) {
	for pos, i := range order {
		rank := pos
		candidates[i].RerankRank = &rank
	}
}

// firstN is the identity order 0..min(n, limit)-1.
func firstN(n, limit int) []int {
	out := make([]int, min(n, limit))
	for i := range out {
		out[i] = i
	}
	return out
}
