package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kaleem-ai/vectorsearch/internal/cache"
	"github.com/kaleem-ai/vectorsearch/internal/logger"
)

const cacheKeyPrefix = "vectorsearch:embedding:"

// DefaultCacheTTL is how long a cached embedding is reused.
const DefaultCacheTTL = time.Hour

// CacheStore is the consumer interface for the embedding cache.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder caches embeddings by text hash. Cache failures are logged
// and never fail the embedding.
type CachedEmbedder struct {
	inner      TextEmbedder
	store      CacheStore
	ttl        time.Duration
	dim        int
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// NewCachedEmbedder creates a caching decorator. dim is part of the key so a
// dimensionality change never serves stale vectors.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), may be nil.
func NewCachedEmbedder(
	inner TextEmbedder,
	store CacheStore,
	ttl time.Duration,
	dim int,
	cacheTotal *prometheus.CounterVec,
	log *zap.Logger,
) *CachedEmbedder {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedEmbedder{
		inner:      inner,
		store:      store,
		ttl:        ttl,
		dim:        dim,
		cacheTotal: cacheTotal,
		logger:     logger.OrNop(log),
	}
}

// Embed returns a cached embedding or calls the inner embedder.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	if vec, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return vec, nil
	}
	c.incCache("miss")

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.putToCache(ctx, key, vec)
	return vec, nil
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return cacheKeyPrefix + strconv.Itoa(c.dim) + ":" + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) getFromCache(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	vec, err := bytesToVector(data)
	if err != nil || (c.dim > 0 && len(vec) != c.dim) {
		c.logger.Warn("Discarding malformed cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) putToCache(ctx context.Context, key string, vec []float32) {
	if err := c.store.SetWithTTL(ctx, key, vectorToBytes(vec), c.ttl); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
