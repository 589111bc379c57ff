package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaleem-ai/vectorsearch/internal/storage"
)

func unifiedStore() *fakeStore {
	store := newFakeStore()
	store.points[storage.CollectionFAQs] = []storage.ScoredPoint{
		{ID: "f1", Score: 0.3, Payload: map[string]any{"question": "Do you ship?", "answer": "Yes"}},
	}
	store.points[storage.CollectionDocuments] = []storage.ScoredPoint{
		{ID: "d1", Score: 0.2, Payload: map[string]any{"text": "Shipping policy document"}},
	}
	store.points[storage.CollectionWeb] = []storage.ScoredPoint{
		{ID: "w1", Score: 0.15, Payload: map[string]any{"text": "About our shipping"}},
	}
	return store
}

func newUnified(emb *countingEmbedder, store *fakeStore, rr *fakeReranker, opts UnifiedOptions) *Unified {
	return NewUnified(NewSearcher(emb, store, Options{MinScore: 0.1}, nil), rr, opts, nil)
}

func TestUnified_MergesTagsAndEmbedsOnce(t *testing.T) {
	emb := &countingEmbedder{}
	rr := &fakeReranker{err: errRerank}
	u := newUnified(emb, unifiedStore(), rr, UnifiedOptions{})

	got, err := u.Search(context.Background(), "shipping", "m1", 2)
	require.NoError(t, err)

	assert.Equal(t, 1, emb.calls)
	assert.Equal(t, 1, rr.calls)
	require.Len(t, got, 2)
	assert.Equal(t, TypeFAQ, got[0].Type)
	assert.InDelta(t, 0.3, got[0].Score, 1e-9)
	assert.Equal(t, TypeDocument, got[1].Type)
}

func TestUnified_RerankOrderAndSerialization(t *testing.T) {
	rr := &fakeReranker{indices: []int{2, 0, 2}}
	u := newUnified(&countingEmbedder{}, unifiedStore(), rr, UnifiedOptions{})

	got, err := u.Search(context.Background(), "shipping", "m1", 2)
	require.NoError(t, err)

	require.Len(t, rr.candidates, 3)
	assert.Equal(t, "question: Do you ship? / answer: Yes", rr.candidates[0])
	assert.Equal(t, "Shipping policy document", rr.candidates[1])

	require.Len(t, got, 2)
	assert.Equal(t, "w1", got[0].ID)
	assert.Equal(t, TypeWeb, got[0].Type)
	assert.Equal(t, "f1", got[1].ID)
}

func TestUnified_AllBelowThresholdSkipsRerank(t *testing.T) {
	store := newFakeStore()
	store.points[storage.CollectionFAQs] = []storage.ScoredPoint{{ID: "f1", Score: 0.05}}
	store.points[storage.CollectionWeb] = []storage.ScoredPoint{{ID: "w1", Score: 0.01}}
	emb := &countingEmbedder{}
	rr := &fakeReranker{}

	got, err := newUnified(emb, store, rr, UnifiedOptions{}).Search(context.Background(), "q", "m1", 5)
	require.NoError(t, err)

	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, rr.calls)
	assert.Equal(t, 1, emb.calls)
}

func TestUnified_UsesUnifiedOverfetchAndMerchantFilter(t *testing.T) {
	store := unifiedStore()
	u := newUnified(&countingEmbedder{}, store, &fakeReranker{err: errRerank}, UnifiedOptions{})

	_, err := u.Search(context.Background(), "q", "m1", 5)
	require.NoError(t, err)

	for _, src := range DefaultSources {
		q := store.queries[src.Collection]
		assert.Equal(t, 10, q.Limit, src.Collection)
		require.NotNil(t, q.Filter)
		assert.Equal(t, storage.Where(storage.FieldMerchantID, "m1"), *q.Filter)
	}
}

func TestUnified_FailedSourceIsTolerated(t *testing.T) {
	store := unifiedStore()
	store.errs[storage.CollectionDocuments] = storage.ErrStoreUnavailable

	got, err := newUnified(&countingEmbedder{}, store, &fakeReranker{err: errRerank}, UnifiedOptions{}).
		Search(context.Background(), "q", "m1", 5)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "f1", got[0].ID)
	assert.Equal(t, "w1", got[1].ID)
}

func TestUnified_StrictSourcesAborts(t *testing.T) {
	store := unifiedStore()
	store.errs[storage.CollectionWeb] = storage.ErrStoreUnavailable

	_, err := newUnified(&countingEmbedder{}, store, &fakeReranker{}, UnifiedOptions{StrictSources: true}).
		Search(context.Background(), "q", "m1", 5)
	assert.ErrorIs(t, err, storage.ErrStoreUnavailable)
}

func TestUnified_AllSourcesFailing(t *testing.T) {
	store := newFakeStore()
	for _, src := range DefaultSources {
		store.errs[src.Collection] = storage.ErrStoreUnavailable
	}
	rr := &fakeReranker{}

	_, err := newUnified(&countingEmbedder{}, store, rr, UnifiedOptions{}).Search(context.Background(), "q", "m1", 5)
	assert.ErrorIs(t, err, storage.ErrStoreUnavailable)
	assert.Zero(t, rr.calls)
}

func TestUnified_InvalidInput(t *testing.T) {
	emb := &countingEmbedder{}
	u := newUnified(emb, newFakeStore(), &fakeReranker{}, UnifiedOptions{})

	_, err := u.Search(context.Background(), "", "m1", 5)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = u.Search(context.Background(), "q", "", 5)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, emb.calls)
}

func TestBotFAQs_Search(t *testing.T) {
	store := newFakeStore()
	store.points[storage.CollectionBotFAQs] = []storage.ScoredPoint{
		{ID: "b1", Score: 0.8, Payload: map[string]any{"question": "What is a plan?", "answer": "A subscription"}},
		{ID: "b2", Score: 0.7, Payload: map[string]any{"question": "q2", "answer": "a2"}},
	}
	b := NewBotFAQs(NewSearcher(&countingEmbedder{}, store, Options{}, nil), nil)

	got, err := b.Search(context.Background(), "plan", 1)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, BotFAQResult{ID: "b1", Question: "What is a plan?", Answer: "A subscription", Score: 0.8}, got[0])
	assert.Nil(t, store.queries[storage.CollectionBotFAQs].Filter)
}
