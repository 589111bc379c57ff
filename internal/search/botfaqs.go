package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kaleem-ai/vectorsearch/internal/logger"
	"github.com/kaleem-ai/vectorsearch/internal/metrics"
	"github.com/kaleem-ai/vectorsearch/internal/storage"
)

// BotFAQResult is one platform FAQ hit.
type BotFAQResult struct {
	ID       string  `json:"id"`
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Score    float64 `json:"score"`
}

type faqPayload struct {
	Question string `mapstructure:"question"`
	Answer   string `mapstructure:"answer"`
}

// BotFAQs searches the platform FAQs shared by all merchants.
type BotFAQs struct {
	searcher *Searcher
	logger   *zap.Logger
}

// NewBotFAQs creates the bot FAQ search.
func NewBotFAQs(searcher *Searcher, log *zap.Logger) *BotFAQs {
	return &BotFAQs{searcher: searcher, logger: logger.OrNop(log)}
}

// Search returns up to topK FAQs, best first. No reranking is applied.
func (b *BotFAQs) Search(ctx context.Context, text string, topK int) ([]BotFAQResult, error) {
	start := time.Now()
	defer func() {
		metrics.SearchDuration.WithLabelValues("bot_faqs").Observe(time.Since(start).Seconds())
	}()

	candidates, err := b.searcher.Query(ctx, storage.CollectionBotFAQs, text, "", topK)
	if err != nil {
		return nil, err
	}

	out := make([]BotFAQResult, 0, min(topK, len(candidates)))
	for _, c := range candidates[:min(topK, len(candidates))] {
		var p faqPayload
		if err := decodePayload(c.Payload, &p); err != nil {
			b.logger.Warn("Malformed FAQ payload", zap.String("point", c.ID), zap.Error(err))
		}
		out = append(out, BotFAQResult{
			ID:       c.ID,
			Question: p.Question,
			Answer:   p.Answer,
			Score:    c.Score,
		})
	}
	return out, nil
}
