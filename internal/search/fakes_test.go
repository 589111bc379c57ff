package search

import (
	"context"
	"errors"
	"sync"

	"github.com/kaleem-ai/vectorsearch/internal/storage"
)

type countingEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *countingEmbedder) Embed(context.Context, string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0, 0}, nil
}

// fakeStore serves canned points per collection and records queries.
type fakeStore struct {
	mu      sync.Mutex
	points  map[string][]storage.ScoredPoint
	errs    map[string]error
	queries map[string]storage.SearchQuery
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		points:  map[string][]storage.ScoredPoint{},
		errs:    map[string]error{},
		queries: map[string]storage.SearchQuery{},
	}
}

func (s *fakeStore) Search(_ context.Context, collection string, q storage.SearchQuery) ([]storage.ScoredPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries[collection] = q
	if err := s.errs[collection]; err != nil {
		return nil, err
	}
	pts := s.points[collection]
	if len(pts) > q.Limit {
		pts = pts[:q.Limit]
	}
	return pts, nil
}

type fakeReranker struct {
	calls      int
	candidates []string
	indices    []int
	err        error
}

func (r *fakeReranker) Rerank(_ context.Context, _ string, candidates []string, _ int) ([]int, error) {
	r.calls++
	r.candidates = candidates
	return r.indices, r.err
}

var errRerank = errors.New("rerank provider down")
