// Package app wires the engine components from configuration.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kaleem-ai/vectorsearch/internal/cache"
	"github.com/kaleem-ai/vectorsearch/internal/config"
	"github.com/kaleem-ai/vectorsearch/internal/embedding"
	"github.com/kaleem-ai/vectorsearch/internal/events"
	"github.com/kaleem-ai/vectorsearch/internal/indexer"
	"github.com/kaleem-ai/vectorsearch/internal/logger"
	"github.com/kaleem-ai/vectorsearch/internal/metrics"
	"github.com/kaleem-ai/vectorsearch/internal/rerank"
	"github.com/kaleem-ai/vectorsearch/internal/search"
	"github.com/kaleem-ai/vectorsearch/internal/storage"
)

// App holds the wired components shared by the server and the CLI.
type App struct {
	Config   *config.Config
	Store    *storage.QdrantStorage
	Embedder embedding.TextEmbedder
	Indexer  *indexer.Pipeline
	Searcher *search.Searcher
	Products *search.Products
	BotFAQs  *search.BotFAQs
	Unified  *search.Unified

	cache  *cache.Store
	logger *zap.Logger
}

// New connects to Qdrant (and Redis when configured) and builds every
// component. Call Close when done.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	log = logger.OrNop(log)

	store, err := storage.Connect(ctx, cfg.Qdrant.URL, cfg.Qdrant.APIKey, log)
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}

	a := &App{Config: cfg, Store: store, logger: log}

	if len(cfg.Redis.Addrs) > 0 {
		c, err := cache.NewStore(cache.Config{Addrs: cfg.Redis.Addrs, Password: cfg.Redis.Password})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.cache = c
		log.Info("Embedding cache enabled", zap.Strings("addrs", cfg.Redis.Addrs))
	}

	var cacheStore embedding.CacheStore
	if a.cache != nil {
		cacheStore = a.cache
	}
	a.Embedder = NewEmbedder(cfg.Embedding, cacheStore, log)

	a.Indexer = indexer.NewPipeline(a.Embedder, store, indexer.Options{
		Dim:          cfg.Embedding.Dim,
		BatchSizes:   BatchSizes(cfg.Vector.UpsertBatch),
		IndexedTotal: metrics.IndexedPointsTotal,
	}, log.Named("indexer"))

	reranker := rerank.NewLLMReranker(rerank.Config{
		BaseURL:            cfg.Rerank.BaseURL,
		APIKey:             cfg.Rerank.APIKey,
		Model:              cfg.Rerank.Model,
		Timeout:            cfg.Rerank.Timeout,
		MaxCandidateLength: cfg.Rerank.MaxCandidateLength,
		RequestsTotal:      metrics.RerankRequestsTotal,
	}, log.Named("rerank"))
	if cfg.Rerank.APIKey == "" {
		log.Warn("Rerank API key is not set, searches return vector order")
	}

	a.Searcher = search.NewSearcher(a.Embedder, store, search.Options{
		MinScore:          cfg.Vector.MinScore,
		Overfetch:         cfg.Vector.Overfetch,
		MinScoreOverrides: cfg.Vector.MinScoreOverrides,
	}, log.Named("search"))
	a.Products = search.NewProducts(a.Searcher, reranker, cfg.PublicWeb.BaseURL, log.Named("products"))
	a.BotFAQs = search.NewBotFAQs(a.Searcher, log.Named("bot_faqs"))
	a.Unified = search.NewUnified(a.Searcher, reranker, search.UnifiedOptions{
		Overfetch:     cfg.Vector.UnifiedOverfetch,
		StrictSources: cfg.Vector.StrictSources,
		ExcerptLength: cfg.Rerank.MaxCandidateLength,
	}, log.Named("unified"))

	return a, nil
}

// NewConsumer builds the index event consumer, or returns nil when no
// Kafka brokers are configured.
func (a *App) NewConsumer() (*events.Consumer, error) {
	k := a.Config.Kafka
	if len(k.Brokers) == 0 {
		return nil, nil
	}
	return events.NewConsumer(events.Config{
		Brokers: k.Brokers,
		Topic:   k.Topic,
		GroupID: k.GroupID,
	}, events.NewHandler(a.Indexer, a.logger.Named("events")), a.logger.Named("consumer"))
}

// Close releases the Qdrant and Redis connections.
func (a *App) Close() error {
	if a.cache != nil {
		a.cache.Close()
	}
	return a.Store.Close()
}

// NewEmbedder builds the embedding chain: transport, retrying client,
// base URL binding and, when store is non-nil, the Redis cache.
func NewEmbedder(cfg config.EmbeddingConfig, store embedding.CacheStore, log *zap.Logger) embedding.TextEmbedder {
	log = logger.OrNop(log)

	var transport embedding.Transport
	switch cfg.Provider {
	case "openai":
		transport = embedding.NewOpenAITransport(cfg.APIKey, cfg.Model, cfg.Dim, cfg.HTTPTimeout)
	default:
		transport = embedding.NewHTTPTransport(cfg.HTTPTimeout, cfg.EndpointPath)
	}

	client := embedding.NewClient(transport, embedding.Options{
		MaxTextLength: cfg.MaxTextLength,
		RxTimeout:     cfg.RxTimeout,
		MaxRetries:    cfg.MaxRetries,
		BaseDelay:     cfg.BaseRetryDelay,
	}, log.Named("embedding"))

	var embedder embedding.TextEmbedder = embedding.NewEmbedder(client, cfg.BaseURL, cfg.Dim, cfg.MaxChars)
	if store != nil {
		embedder = embedding.NewCachedEmbedder(embedder, store, cfg.CacheTTL, cfg.Dim, metrics.EmbeddingCacheTotal, log)
	}
	return embedder
}

// BatchSizes maps collection names to their configured upsert batch size.
func BatchSizes(cfg config.UpsertBatchConfig) map[string]int {
	return map[string]int{
		storage.CollectionProducts:  cfg.Products,
		storage.CollectionOffers:    cfg.Offers,
		storage.CollectionFAQs:      cfg.FAQs,
		storage.CollectionDocuments: cfg.Documents,
		storage.CollectionWeb:       cfg.Web,
		storage.CollectionBotFAQs:   cfg.BotFAQs,
	}
}
