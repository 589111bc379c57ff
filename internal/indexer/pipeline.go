// Package indexer turns domain entities into vector points: it embeds each
// entity, removes the previous point for the same external id and writes
// the new points in per-collection batches.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kaleem-ai/vectorsearch/internal/chunker"
	"github.com/kaleem-ai/vectorsearch/internal/embedding"
	"github.com/kaleem-ai/vectorsearch/internal/logger"
	"github.com/kaleem-ai/vectorsearch/internal/storage"
)

// pointNamespace seeds deterministic point ids.
var pointNamespace = uuid.MustParse("6f1c3a52-4e0b-4c6a-9d7e-2b8f5a1e9c34")

// ErrInvalidInput is returned for entities that can never be indexed.
var ErrInvalidInput = errors.New("invalid index input")

// DefaultBatchSize is used for collections without a configured batch size.
const DefaultBatchSize = 10

// webChunkSize is the rune length of one crawled page chunk.
const webChunkSize = 1000

// Store is the subset of the vector store the pipeline writes through.
type Store interface {
	EnsureCollection(ctx context.Context, name string, dim int) error
	Upsert(ctx context.Context, collection string, points []storage.Point) error
	Delete(ctx context.Context, collection string, f storage.Filter) error
}

// IndexResult contains statistics about an indexing operation.
type IndexResult struct {
	Collection string
	Indexed    int
	Skipped    int
	Batches    int
	Duration   time.Duration
}

// Options tune a Pipeline.
type Options struct {
	// Dim is the vector size collections are created with.
	Dim int
	// BatchSizes maps collection name to upsert batch size.
	BatchSizes map[string]int
	// DocumentChunkSize caps document chunks in runes.
	DocumentChunkSize int
	// Useful filters crawled web chunks.
	Useful chunker.UsefulFilter
	// IndexedTotal counts written points by collection, may be nil.
	IndexedTotal *prometheus.CounterVec
}

// Pipeline orchestrates embedding and storage of entities.
type Pipeline struct {
	embedder     embedding.TextEmbedder
	store        Store
	chunker      *chunker.Chunker
	dim          int
	batchSizes   map[string]int
	useful       chunker.UsefulFilter
	indexedTotal *prometheus.CounterVec
	logger       *zap.Logger
}

// NewPipeline creates a new indexing pipeline with the given components.
func NewPipeline(embedder embedding.TextEmbedder, store Store, opts Options, log *zap.Logger) *Pipeline {
	useful := opts.Useful
	if useful.MinLength == 0 && useful.Script == nil {
		useful = chunker.DefaultUsefulFilter
	}
	return &Pipeline{
		embedder:     embedder,
		store:        store,
		chunker:      chunker.New(opts.DocumentChunkSize),
		dim:          opts.Dim,
		batchSizes:   opts.BatchSizes,
		useful:       useful,
		indexedTotal: opts.IndexedTotal,
		logger:       logger.OrNop(log),
	}
}

// PointID is the deterministic point id of an external id in a collection.
func PointID(collection, externalID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(collection+":"+externalID)).String()
}

func (p *Pipeline) batchSize(collection string) int {
	if n, ok := p.batchSizes[collection]; ok && n > 0 {
		return n
	}
	return DefaultBatchSize
}

// EnsureCollections creates every known collection that does not exist yet.
func (p *Pipeline) EnsureCollections(ctx context.Context) error {
	for _, name := range storage.Collections {
		if err := p.store.EnsureCollection(ctx, name, p.dim); err != nil {
			return fmt.Errorf("ensure collection %s: %w", name, err)
		}
	}
	return nil
}

// IndexEntities embeds every entity, deletes the previous point with the
// same mongoId and writes the new points in batches. Entities with blank text
// are skipped. The first error aborts the run; batches already flushed stay
// written.
func (p *Pipeline) IndexEntities(ctx context.Context, collection string, entities []Entity) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{Collection: collection}
	if len(entities) == 0 {
		return result, nil
	}

	size := p.batchSize(collection)
	staged := make([]storage.Point, 0, size)

	flush := func() error {
		if len(staged) == 0 {
			return nil
		}
		if err := p.store.Upsert(ctx, collection, staged); err != nil {
			return fmt.Errorf("upsert batch %d: %w", result.Batches+1, err)
		}
		result.Batches++
		result.Indexed += len(staged)
		if p.indexedTotal != nil {
			p.indexedTotal.WithLabelValues(collection).Add(float64(len(staged)))
		}
		staged = staged[:0]
		return nil
	}

	for _, e := range entities {
		id := e.ExternalID()
		text := e.Text()
		if strings.TrimSpace(text) == "" {
			p.logger.Warn("Skipping entity without text", zap.String("collection", collection), zap.String("id", id))
			result.Skipped++
			continue
		}

		vector, err := p.embedder.Embed(ctx, text)
		if err != nil {
			return result, fmt.Errorf("embed %s %s: %w", collection, id, err)
		}

		if err := p.store.Delete(ctx, collection, storage.Where(storage.FieldMongoID, id)); err != nil {
			return result, fmt.Errorf("delete previous %s %s: %w", collection, id, err)
		}

		payload := e.Payload()
		if payload == nil {
			payload = make(map[string]any, 1)
		}
		payload[storage.FieldMongoID] = id

		staged = append(staged, storage.Point{
			ID:      PointID(collection, id),
			Vector:  vector,
			Payload: payload,
		})
		if len(staged) == size {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}
	if err := flush(); err != nil {
		return result, err
	}

	result.Duration = time.Since(start)
	p.logger.Info("Indexing complete",
		zap.String("collection", collection),
		zap.Int("indexed", result.Indexed),
		zap.Int("skipped", result.Skipped),
		zap.Int("batches", result.Batches),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// IndexProducts indexes products. Products without an id or a name are
// skipped with a warning.
func (p *Pipeline) IndexProducts(ctx context.Context, products []Product) (*IndexResult, error) {
	entities := make([]Entity, 0, len(products))
	for _, pr := range products {
		if strings.TrimSpace(pr.ID) == "" || strings.TrimSpace(pr.Name) == "" {
			continue
		}
		entities = append(entities, pr)
	}
	skipped := len(products) - len(entities)
	if skipped > 0 {
		p.logger.Warn("Filtered out invalid products", zap.Int("count", skipped))
	}
	result, err := p.IndexEntities(ctx, storage.CollectionProducts, entities)
	return withSkipped(result, skipped), err
}

// IndexOffers indexes offers. Offers without an id are skipped.
func (p *Pipeline) IndexOffers(ctx context.Context, offers []Offer) (*IndexResult, error) {
	entities := make([]Entity, 0, len(offers))
	for _, o := range offers {
		if strings.TrimSpace(o.ID) != "" {
			entities = append(entities, o)
		}
	}
	result, err := p.IndexEntities(ctx, storage.CollectionOffers, entities)
	return withSkipped(result, len(offers)-len(entities)), err
}

// IndexFAQs indexes merchant FAQs. Entries without an id, question or
// answer are skipped.
func (p *Pipeline) IndexFAQs(ctx context.Context, faqs []FAQ) (*IndexResult, error) {
	entities := make([]Entity, 0, len(faqs))
	for _, f := range faqs {
		if validFAQ(f.ID, f.Question, f.Answer) {
			entities = append(entities, f)
		}
	}
	result, err := p.IndexEntities(ctx, storage.CollectionFAQs, entities)
	return withSkipped(result, len(faqs)-len(entities)), err
}

// IndexBotFAQs indexes the platform FAQs.
func (p *Pipeline) IndexBotFAQs(ctx context.Context, faqs []BotFAQ) (*IndexResult, error) {
	entities := make([]Entity, 0, len(faqs))
	for _, f := range faqs {
		if validFAQ(f.ID, f.Question, f.Answer) {
			entities = append(entities, f)
		}
	}
	result, err := p.IndexEntities(ctx, storage.CollectionBotFAQs, entities)
	return withSkipped(result, len(faqs)-len(entities)), err
}

func validFAQ(id, question, answer string) bool {
	return strings.TrimSpace(id) != "" && strings.TrimSpace(question) != "" && strings.TrimSpace(answer) != ""
}

// IndexDocument replaces every chunk of the document with a fresh chunking
// of its content.
func (p *Pipeline) IndexDocument(ctx context.Context, doc Document) (*IndexResult, error) {
	if doc.ID == "" || doc.MerchantID == "" {
		return nil, fmt.Errorf("%w: document needs an id and a merchant id", ErrInvalidInput)
	}

	chunks, err := p.chunker.Split([]byte(doc.Content))
	if err != nil {
		return nil, fmt.Errorf("chunk document %s: %w", doc.ID, err)
	}

	if err := p.RemoveDocument(ctx, doc.MerchantID, doc.ID); err != nil {
		return nil, err
	}

	entities := make([]Entity, len(chunks))
	for i, c := range chunks {
		entities[i] = documentChunk{
			merchantID: doc.MerchantID,
			documentID: doc.ID,
			index:      c.Index,
			total:      len(chunks),
			headerPath: c.HeaderPath,
			content:    c.Content,
			raw:        c.RawContent,
		}
	}
	return p.IndexEntities(ctx, storage.CollectionDocuments, entities)
}

// IndexWebPage replaces every chunk of a crawled page. Chunks that are too
// short or carry too little real text are skipped.
func (p *Pipeline) IndexWebPage(ctx context.Context, page WebPage) (*IndexResult, error) {
	if page.MerchantID == "" || page.URL == "" {
		return nil, fmt.Errorf("%w: web page needs a merchant id and a url", ErrInvalidInput)
	}

	if err := p.RemoveWebPage(ctx, page.MerchantID, page.URL); err != nil {
		return nil, err
	}

	pieces := chunker.SplitBySize(page.Text, webChunkSize)
	entities := make([]Entity, 0, len(pieces))
	for i, piece := range pieces {
		if !p.useful.Useful(piece) {
			continue
		}
		entities = append(entities, webChunk{
			merchantID: page.MerchantID,
			url:        page.URL,
			title:      page.Title,
			index:      i,
			text:       piece,
		})
	}
	skipped := len(pieces) - len(entities)
	if skipped > 0 {
		p.logger.Debug("Skipped web chunks", zap.String("url", page.URL), zap.Int("count", skipped))
	}
	result, err := p.IndexEntities(ctx, storage.CollectionWeb, entities)
	return withSkipped(result, skipped), err
}

func withSkipped(result *IndexResult, skipped int) *IndexResult {
	if result != nil {
		result.Skipped += skipped
	}
	return result
}
