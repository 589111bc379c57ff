package search

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kaleem-ai/vectorsearch/internal/embedding"
	"github.com/kaleem-ai/vectorsearch/internal/logger"
	"github.com/kaleem-ai/vectorsearch/internal/metrics"
	"github.com/kaleem-ai/vectorsearch/internal/rerank"
	"github.com/kaleem-ai/vectorsearch/internal/storage"
)

// Result types of the unified search.
const (
	TypeFAQ      = "faq"
	TypeDocument = "document"
	TypeWeb      = "web"
)

// DefaultUnifiedOverfetch multiplies topK per source in the unified search.
const DefaultUnifiedOverfetch = 2

// Source is one knowledge collection queried by the unified search.
type Source struct {
	Collection string
	Type       string
}

// DefaultSources are the merchant knowledge collections.
var DefaultSources = []Source{
	{Collection: storage.CollectionFAQs, Type: TypeFAQ},
	{Collection: storage.CollectionDocuments, Type: TypeDocument},
	{Collection: storage.CollectionWeb, Type: TypeWeb},
}

// UnifiedResult is one merged hit.
type UnifiedResult struct {
	Type       string         `json:"type"`
	Data       map[string]any `json:"data"`
	Score      float64        `json:"score"`
	ID         string         `json:"id"`
	RerankRank *int           `json:"rerankRank,omitempty"` // nil when the similarity order was used
}

// UnifiedOptions tune the unified search.
type UnifiedOptions struct {
	Sources   []Source
	Overfetch int
	// StrictSources makes any failing source fail the whole search.
	StrictSources bool
	// ExcerptLength caps document and web text handed to the reranker.
	ExcerptLength int
}

// Unified searches every knowledge source with one query embedding and
// reranks the merged candidates once.
type Unified struct {
	searcher *Searcher
	reranker rerank.Reranker
	opts     UnifiedOptions
	logger   *zap.Logger
}

// NewUnified creates the unified search.
func NewUnified(searcher *Searcher, reranker rerank.Reranker, opts UnifiedOptions, log *zap.Logger) *Unified {
	if len(opts.Sources) == 0 {
		opts.Sources = DefaultSources
	}
	if opts.Overfetch <= 0 {
		opts.Overfetch = DefaultUnifiedOverfetch
	}
	if opts.ExcerptLength <= 0 {
		opts.ExcerptLength = rerank.DefaultMaxCandidateLength
	}
	return &Unified{
		searcher: searcher,
		reranker: reranker,
		opts:     opts,
		logger:   logger.OrNop(log),
	}
}

// Search embeds query once, queries every source concurrently, filters each
// by its threshold and returns at most topK merged results.
//
// A failing source contributes no candidates unless StrictSources is set.
// When every source fails the first error is returned.
func (u *Unified) Search(ctx context.Context, query, merchantID string, topK int) ([]UnifiedResult, error) {
	start := time.Now()
	defer func() {
		metrics.SearchDuration.WithLabelValues("unified").Observe(time.Since(start).Seconds())
	}()

	if strings.TrimSpace(query) == "" || strings.TrimSpace(merchantID) == "" {
		return nil, fmt.Errorf("%w: query and merchant id are required", ErrInvalidInput)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", ErrInvalidInput)
	}

	vector, err := u.searcher.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	merged, err := u.fanOut(ctx, vector, merchantID, topK)
	if err != nil {
		return nil, err
	}
	if len(merged) == 0 {
		return []UnifiedResult{}, nil
	}

	// Cross-source order: higher store score first, source order on ties.
	slices.SortStableFunc(merged, func(a, b Candidate) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	texts := make([]string, len(merged))
	for i, c := range merged {
		texts[i] = u.candidateText(c)
	}

	order := firstN(len(merged), topK)
	indices, err := u.reranker.Rerank(ctx, query, texts, topK)
	if err != nil {
		metrics.RerankFallbacksTotal.WithLabelValues("unified").Inc()
		u.logger.Warn("Rerank failed, using similarity order", zap.Error(err))
	} else {
		order = rankedOrder(indices, len(merged), topK)
		assignRanks(merged, order)
	}

	out := make([]UnifiedResult, len(order))
	for i, idx := range order {
		c := merged[idx]
		out[i] = UnifiedResult{Type: c.Type, Data: c.Payload, Score: c.Score, ID: c.ID, RerankRank: c.RerankRank}
	}
	return out, nil
}

// fanOut runs one vector query per source. Results keep source order so the
// merge is deterministic.
func (u *Unified) fanOut(ctx context.Context, vector []float32, merchantID string, topK int) ([]Candidate, error) {
	results := make([][]Candidate, len(u.opts.Sources))
	errs := make([]error, len(u.opts.Sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range u.opts.Sources {
		g.Go(func() error {
			found, err := u.searcher.search(gctx, src.Collection, vector, merchantID, topK*u.opts.Overfetch)
			if err != nil {
				metrics.SourceErrorsTotal.WithLabelValues(src.Type).Inc()
				errs[i] = fmt.Errorf("search %s: %w", src.Collection, err)
				if u.opts.StrictSources {
					return errs[i]
				}
				u.logger.Warn("Unified search source failed",
					zap.String("collection", src.Collection),
					zap.Error(err),
				)
				return nil
			}
			for j := range found {
				found[j].Type = src.Type
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []Candidate
	failed := 0
	for i := range results {
		if errs[i] != nil {
			failed++
		}
		merged = append(merged, results[i]...)
	}
	if failed == len(u.opts.Sources) {
		return nil, errs[0]
	}
	return merged, nil
}

// candidateText renders a candidate for the reranker: question and answer
// for FAQs, a text excerpt otherwise.
func (u *Unified) candidateText(c Candidate) string {
	if c.Type == TypeFAQ {
		var p faqPayload
		_ = decodePayload(c.Payload, &p)
		return "question: " + p.Question + " / answer: " + p.Answer
	}
	text, _ := c.Payload["text"].(string)
	return embedding.Truncate(text, u.opts.ExcerptLength)
}

