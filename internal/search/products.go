package search

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"

	"github.com/kaleem-ai/vectorsearch/internal/logger"
	"github.com/kaleem-ai/vectorsearch/internal/metrics"
	"github.com/kaleem-ai/vectorsearch/internal/rerank"
	"github.com/kaleem-ai/vectorsearch/internal/storage"
)

// DefaultPublicBaseURL hosts storefront pages of merchants without a domain.
const DefaultPublicBaseURL = "https://kaleem-ai.com"

// ProductResult is one product search hit.
type ProductResult struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Score        float64  `json:"score"`
	Price        *float64 `json:"price,omitempty"`
	URL          string   `json:"url,omitempty"`
	Currency     string   `json:"currency,omitempty"`
	CategoryName string   `json:"categoryName,omitempty"`
	Images       []string `json:"images,omitempty"`
	HasOffer     *bool    `json:"hasOffer,omitempty"`
	PriceOld     *float64 `json:"priceOld,omitempty"`
	PriceNew     *float64 `json:"priceNew,omitempty"`
	DiscountPct  *int     `json:"discountPct,omitempty"`
	RerankRank   *int     `json:"rerankRank,omitempty"`
}

// productPayload is the stored product payload.
type productPayload struct {
	MongoID        string   `mapstructure:"mongoId"`
	Name           string   `mapstructure:"name"`
	CategoryName   *string  `mapstructure:"categoryName"`
	Images         []string `mapstructure:"images"`
	Slug           *string  `mapstructure:"slug"`
	StorefrontSlug *string  `mapstructure:"storefrontSlug"`
	Domain         *string  `mapstructure:"domain"`
	PublicURL      *string  `mapstructure:"publicUrlStored"`
	Price          *float64 `mapstructure:"price"`
	PriceEffective *float64 `mapstructure:"priceEffective"`
	Currency       *string  `mapstructure:"currency"`
	HasOffer       *bool    `mapstructure:"hasOffer"`
	PriceOld       *float64 `mapstructure:"priceOld"`
	PriceNew       *float64 `mapstructure:"priceNew"`
	DiscountPct    *int     `mapstructure:"discountPct"`
}

// decodePayload decodes a stored payload into out, ignoring unknown keys.
func decodePayload(payload map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(payload)
}

// Products finds catalog items similar to a shopper query.
type Products struct {
	searcher *Searcher
	reranker rerank.Reranker
	baseURL  string
	logger   *zap.Logger
}

// NewProducts creates the product search. publicBaseURL builds storefront
// links; empty uses DefaultPublicBaseURL.
func NewProducts(searcher *Searcher, reranker rerank.Reranker, publicBaseURL string, log *zap.Logger) *Products {
	publicBaseURL = strings.TrimRight(publicBaseURL, "/")
	if publicBaseURL == "" {
		publicBaseURL = DefaultPublicBaseURL
	}
	return &Products{
		searcher: searcher,
		reranker: reranker,
		baseURL:  publicBaseURL,
		logger:   logger.OrNop(log),
	}
}

// SimilarProducts returns up to topK products of the merchant. Candidates are
// reranked; when reranking fails the first topK in similarity order are
// returned instead.
func (p *Products) SimilarProducts(ctx context.Context, merchantID, text string, topK int) ([]ProductResult, error) {
	start := time.Now()
	defer func() {
		metrics.SearchDuration.WithLabelValues("products").Observe(time.Since(start).Seconds())
	}()

	candidates, err := p.searcher.Query(ctx, storage.CollectionProducts, text, merchantID, topK)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []ProductResult{}, nil
	}

	payloads := make([]productPayload, len(candidates))
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		if err := decodePayload(c.Payload, &payloads[i]); err != nil {
			p.logger.Warn("Malformed product payload", zap.String("point", c.ID), zap.Error(err))
		}
		texts[i] = productText(payloads[i])
	}

	order := firstN(len(candidates), topK)
	indices, err := p.reranker.Rerank(ctx, text, texts, topK)
	if err != nil {
		metrics.RerankFallbacksTotal.WithLabelValues("products").Inc()
		p.logger.Warn("Rerank failed, using similarity order", zap.Error(err))
	} else {
		order = rankedOrder(indices, len(candidates), topK)
		assignRanks(candidates, order)
	}

	results := make([]ProductResult, 0, len(order))
	for _, i := range order {
		results = append(results, p.buildResult(candidates[i], payloads[i]))
	}
	return results, nil
}

// productText is the rerank representation of a product.
func productText(pp productPayload) string {
	price := pp.PriceEffective
	if price == nil {
		price = pp.Price
	}
	if price == nil {
		return pp.Name
	}
	return pp.Name + " - " + strconv.FormatFloat(*price, 'f', -1, 64)
}

func (p *Products) buildResult(c Candidate, pp productPayload) ProductResult {
	r := ProductResult{
		ID:          pp.MongoID,
		Name:        pp.Name,
		Score:       c.Score,
		Price:       pp.PriceEffective,
		Images:      pp.Images,
		HasOffer:    pp.HasOffer,
		PriceOld:    pp.PriceOld,
		PriceNew:    pp.PriceNew,
		DiscountPct: pp.DiscountPct,
		URL:         resolveProductURL(pp, p.baseURL),
		RerankRank:  c.RerankRank,
	}
	if r.ID == "" {
		r.ID = c.ID
	}
	if r.Price == nil {
		r.Price = pp.Price
	}
	if pp.Currency != nil {
		r.Currency = *pp.Currency
	}
	if pp.CategoryName != nil {
		r.CategoryName = *pp.CategoryName
	}
	return r
}

// resolveProductURL picks the most specific public link for a product:
// merchant domain, storefront slug with product slug, the stored public URL
// and finally storefront slug with product id.
func resolveProductURL(pp productPayload, base string) string {
	slug := deref(pp.Slug)
	storefront := deref(pp.StorefrontSlug)

	if domain := deref(pp.Domain); domain != "" && slug != "" {
		domain = strings.TrimPrefix(strings.TrimPrefix(domain, "https://"), "http://")
		return fmt.Sprintf("https://%s/product/%s", strings.TrimRight(domain, "/"), url.PathEscape(slug))
	}
	if storefront != "" && slug != "" {
		return fmt.Sprintf("%s/store/%s/product/%s", base, url.PathEscape(storefront), url.PathEscape(slug))
	}
	if stored := deref(pp.PublicURL); stored != "" {
		baseURL, err := url.Parse(base + "/")
		if err != nil {
			return stored
		}
		ref, err := url.Parse(stored)
		if err != nil {
			return stored
		}
		return baseURL.ResolveReference(ref).String()
	}
	if storefront != "" && pp.MongoID != "" {
		return fmt.Sprintf("%s/store/%s/product/%s", base, url.PathEscape(storefront), url.PathEscape(pp.MongoID))
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
