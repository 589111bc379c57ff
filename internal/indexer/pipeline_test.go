package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaleem-ai/vectorsearch/internal/storage"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	texts []string
	err   error
	failN int // fail on the Nth call (1-based), 0 never
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.err != nil && (f.failN == 0 || len(f.texts) == f.failN) {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

// memStore keeps points per collection and records every call.
type memStore struct {
	points    map[string]map[string]storage.Point
	upserts   []int
	deletes   []storage.Filter
	ensured   []string
	upsertErr error
}

func newMemStore() *memStore {
	return &memStore{points: map[string]map[string]storage.Point{}}
}

func (m *memStore) EnsureCollection(_ context.Context, name string, _ int) error {
	m.ensured = append(m.ensured, name)
	return nil
}

func (m *memStore) Upsert(_ context.Context, collection string, points []storage.Point) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts = append(m.upserts, len(points))
	if m.points[collection] == nil {
		m.points[collection] = map[string]storage.Point{}
	}
	for _, p := range points {
		m.points[collection][p.ID] = p
	}
	return nil
}

func (m *memStore) Delete(_ context.Context, collection string, f storage.Filter) error {
	m.deletes = append(m.deletes, f)
	for id, p := range m.points[collection] {
		if matches(p.Payload, f) {
			delete(m.points[collection], id)
		}
	}
	return nil
}

func matches(payload map[string]any, f storage.Filter) bool {
	for _, c := range f.Must {
		if payload[c.Key] != c.Value {
			return false
		}
	}
	return true
}

func faqs(n int) []Entity {
	out := make([]Entity, n)
	for i := range out {
		out[i] = FAQ{
			ID:         fmt.Sprintf("faq-%d", i),
			MerchantID: "m1",
			Question:   fmt.Sprintf("question %d", i),
			Answer:     "answer",
		}
	}
	return out
}

func TestIndexEntities_BatchesPerCollectionSize(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		batch   int
		upserts []int
	}{
		{"exact multiple", 4, 2, []int{2, 2}},
		{"remainder", 25, 10, []int{10, 10, 5}},
		{"single partial", 3, 10, []int{3}},
		{"batch of one", 3, 1, []int{1, 1, 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			emb := &fakeEmbedder{}
			store := newMemStore()
			p := NewPipeline(emb, store, Options{
				Dim:        3,
				BatchSizes: map[string]int{storage.CollectionFAQs: tc.batch},
			}, nil)

			result, err := p.IndexEntities(context.Background(), storage.CollectionFAQs, faqs(tc.n))
			require.NoError(t, err)

			assert.Equal(t, tc.upserts, store.upserts)
			assert.Len(t, emb.texts, tc.n)
			assert.Len(t, store.deletes, tc.n)
			assert.Equal(t, tc.n, result.Indexed)
			assert.Equal(t, len(tc.upserts), result.Batches)
		})
	}
}

func TestIndexEntities_DeletesByMongoIDBeforeStaging(t *testing.T) {
	store := newMemStore()
	p := NewPipeline(&fakeEmbedder{}, store, Options{}, nil)

	_, err := p.IndexEntities(context.Background(), storage.CollectionFAQs, faqs(2))
	require.NoError(t, err)

	require.Len(t, store.deletes, 2)
	assert.Equal(t, storage.Where(storage.FieldMongoID, "faq-0"), store.deletes[0])
	assert.Equal(t, storage.Where(storage.FieldMongoID, "faq-1"), store.deletes[1])
}

func TestIndexEntities_Idempotent(t *testing.T) {
	store := newMemStore()
	p := NewPipeline(&fakeEmbedder{}, store, Options{}, nil)
	ctx := context.Background()

	_, err := p.IndexEntities(ctx, storage.CollectionFAQs, faqs(3))
	require.NoError(t, err)
	_, err = p.IndexEntities(ctx, storage.CollectionFAQs, faqs(3))
	require.NoError(t, err)

	assert.Len(t, store.points[storage.CollectionFAQs], 3)
	for _, pt := range store.points[storage.CollectionFAQs] {
		id := pt.Payload[storage.FieldMongoID].(string)
		assert.Equal(t, PointID(storage.CollectionFAQs, id), pt.ID)
	}
}

func TestIndexEntities_EmptyInputMakesNoCalls(t *testing.T) {
	emb := &fakeEmbedder{}
	store := newMemStore()
	p := NewPipeline(emb, store, Options{}, nil)

	result, err := p.IndexEntities(context.Background(), storage.CollectionProducts, nil)
	require.NoError(t, err)

	assert.Zero(t, result.Indexed)
	assert.Empty(t, emb.texts)
	assert.Empty(t, store.deletes)
	assert.Empty(t, store.upserts)
}

func TestIndexEntities_EmbedErrorAbortsKeepingFlushedBatches(t *testing.T) {
	embedErr := errors.New("embedding service down")
	emb := &fakeEmbedder{err: embedErr, failN: 4}
	store := newMemStore()
	p := NewPipeline(emb, store, Options{
		BatchSizes: map[string]int{storage.CollectionFAQs: 2},
	}, nil)

	result, err := p.IndexEntities(context.Background(), storage.CollectionFAQs, faqs(6))
	require.Error(t, err)
	assert.ErrorIs(t, err, embedErr)

	assert.Equal(t, []int{2}, store.upserts)
	assert.Equal(t, 2, result.Indexed)
	assert.Len(t, emb.texts, 4)
}

func TestIndexEntities_UpsertErrorPropagates(t *testing.T) {
	store := newMemStore()
	store.upsertErr = storage.ErrStoreUnavailable
	p := NewPipeline(&fakeEmbedder{}, store, Options{}, nil)

	_, err := p.IndexEntities(context.Background(), storage.CollectionFAQs, faqs(1))
	assert.ErrorIs(t, err, storage.ErrStoreUnavailable)
}

func TestIndexEntities_CountsIndexedPoints(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "indexed_test"}, []string{"collection"})
	p := NewPipeline(&fakeEmbedder{}, newMemStore(), Options{IndexedTotal: counter}, nil)

	_, err := p.IndexEntities(context.Background(), storage.CollectionFAQs, faqs(3))
	require.NoError(t, err)

	assert.InDelta(t, 3, testutil.ToFloat64(counter.WithLabelValues(storage.CollectionFAQs)), 1e-9)
}

func TestIndexProducts_SkipsInvalid(t *testing.T) {
	emb := &fakeEmbedder{}
	store := newMemStore()
	p := NewPipeline(emb, store, Options{}, nil)

	result, err := p.IndexProducts(context.Background(), []Product{
		{ID: "p1", MerchantID: "m1", Name: "Coffee beans"},
		{ID: "", Name: "no id"},
		{ID: "p3", Name: "  "},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Indexed)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, emb.texts, 1)
}

func TestEnsureCollections_Order(t *testing.T) {
	store := newMemStore()
	p := NewPipeline(&fakeEmbedder{}, store, Options{Dim: 384}, nil)

	require.NoError(t, p.EnsureCollections(context.Background()))
	assert.Equal(t, []string{"products", "offers", "faqs", "documents", "web_knowledge", "bot_faqs"}, store.ensured)
}

func TestIndexDocument_PurgesThenIndexesChunks(t *testing.T) {
	store := newMemStore()
	p := NewPipeline(&fakeEmbedder{}, store, Options{DocumentChunkSize: 50}, nil)
	content := "# Returns\n\n" + strings.Repeat("Items can be returned within fourteen days. ", 4)

	result, err := p.IndexDocument(context.Background(), Document{ID: "d1", MerchantID: "m1", Content: content})
	require.NoError(t, err)
	require.Greater(t, result.Indexed, 1)

	first := store.deletes[0]
	assert.Equal(t, storage.Where(storage.FieldMerchantID, "m1").And("documentId", "d1"), first)

	for _, pt := range store.points[storage.CollectionDocuments] {
		assert.Equal(t, "d1", pt.Payload["documentId"])
		assert.Equal(t, result.Indexed, pt.Payload["totalChunks"])
		assert.Equal(t, "# Returns", pt.Payload["headerPath"])
	}
}

func TestIndexDocument_RequiresIDs(t *testing.T) {
	p := NewPipeline(&fakeEmbedder{}, newMemStore(), Options{}, nil)
	_, err := p.IndexDocument(context.Background(), Document{Content: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = p.IndexWebPage(context.Background(), WebPage{Text: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestIndexOffers_SkipsOffersWithoutText(t *testing.T) {
	emb := &fakeEmbedder{}
	store := newMemStore()
	p := NewPipeline(emb, store, Options{Dim: 3}, nil)

	result, err := p.IndexOffers(context.Background(), []Offer{
		{ID: "o1", MerchantID: "m1"},
		{ID: "o2", MerchantID: "m1", Name: "Sale"},
		{ID: "", Name: "No id"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Offer: Sale"}, emb.texts)
	assert.Equal(t, 1, result.Indexed)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, store.points[storage.CollectionOffers], 1)
	assert.Len(t, store.deletes, 1)
}

func TestIndexEntities_AllBlankMakesNoWrites(t *testing.T) {
	emb := &fakeEmbedder{}
	store := newMemStore()
	p := NewPipeline(emb, store, Options{Dim: 3}, nil)

	result, err := p.IndexEntities(context.Background(), storage.CollectionOffers, []Entity{Offer{ID: "o1"}, Offer{ID: "o2"}})
	require.NoError(t, err)

	assert.Empty(t, emb.texts)
	assert.Empty(t, store.upserts)
	assert.Equal(t, 0, result.Indexed)
	assert.Equal(t, 2, result.Skipped)
}

func TestIndexWebPage_SkipsUselessChunks(t *testing.T) {
	emb := &fakeEmbedder{}
	store := newMemStore()
	p := NewPipeline(emb, store, Options{}, nil)

	arabic := strings.Repeat("مرحبا بكم في متجرنا ", 3)
	result, err := p.IndexWebPage(context.Background(), WebPage{
		MerchantID: "m1",
		URL:        "https://shop.example/about",
		Text:       arabic,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Indexed)

	_, err = p.IndexWebPage(context.Background(), WebPage{
		MerchantID: "m1",
		URL:        "https://shop.example/en",
		Text:       "English only text that is long enough to pass the length check",
	})
	require.NoError(t, err)

	assert.Len(t, emb.texts, 1)
	assert.Len(t, store.points[storage.CollectionWeb], 1)
}

func TestRemoveHelpers_Filters(t *testing.T) {
	store := newMemStore()
	p := NewPipeline(&fakeEmbedder{}, store, Options{}, nil)
	ctx := context.Background()

	require.NoError(t, p.RemoveProducts(ctx, []string{"a", "b"}))
	require.NoError(t, p.RemoveByMerchant(ctx, storage.CollectionFAQs, "m1"))
	require.NoError(t, p.RemoveProductsByCategory(ctx, "m1", "c1"))
	require.NoError(t, p.RemoveWebPage(ctx, "m1", "https://x"))

	assert.Equal(t, []storage.Filter{
		storage.Where(storage.FieldMongoID, "a"),
		storage.Where(storage.FieldMongoID, "b"),
		storage.Where(storage.FieldMerchantID, "m1"),
		storage.Where(storage.FieldMerchantID, "m1").And("categoryId", "c1"),
		storage.Where(storage.FieldMerchantID, "m1").And("url", "https://x"),
	}, store.deletes)

	assert.Error(t, p.RemoveEntity(ctx, storage.CollectionFAQs, ""))
	assert.Error(t, p.RemoveByMerchant(ctx, storage.CollectionFAQs, ""))
}
