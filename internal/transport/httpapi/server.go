// Package httpapi exposes the search operations over HTTP.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kaleem-ai/vectorsearch/internal/logger"
	"github.com/kaleem-ai/vectorsearch/internal/metrics"
	"github.com/kaleem-ai/vectorsearch/internal/search"
)

// ProductSearcher finds products similar to a text.
type ProductSearcher interface {
	SimilarProducts(ctx context.Context, merchantID, text string, topK int) ([]search.ProductResult, error)
}

// UnifiedSearcher searches every knowledge source of a merchant.
type UnifiedSearcher interface {
	Search(ctx context.Context, query, merchantID string, topK int) ([]search.UnifiedResult, error)
}

// BotFAQSearcher searches the platform FAQs.
type BotFAQSearcher interface {
	Search(ctx context.Context, text string, topK int) ([]search.BotFAQResult, error)
}

// HealthChecker reports vector store reachability.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps are the services behind the routes.
type Deps struct {
	Products ProductSearcher
	Unified  UnifiedSearcher
	BotFAQs  BotFAQSearcher
	Health   HealthChecker
	// MCP is mounted at /mcp when set.
	MCP http.Handler
}

// Server serves the search API.
type Server struct {
	products ProductSearcher
	unified  UnifiedSearcher
	botFAQs  BotFAQSearcher
	health   HealthChecker
	mcp      http.Handler
	logger   *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(deps Deps, log *zap.Logger) *Server {
	return &Server{
		products: deps.Products,
		unified:  deps.Unified,
		botFAQs:  deps.BotFAQs,
		health:   deps.Health,
		mcp:      deps.MCP,
		logger:   logger.OrNop(log),
	}
}

// Handler returns the chi router with every route and middleware installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/", landingHandler)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/vector", func(r chi.Router) {
		r.Post("/products", s.handleProductsPost)
		r.Get("/products", s.handleProductsGet)
		r.Post("/unified", s.handleUnified)
		r.Post("/bot-faqs/search", s.handleBotFAQs)
	})

	if s.mcp != nil {
		r.Handle("/mcp", s.mcp)
		r.Handle("/mcp/*", s.mcp)
	}
	return r
}
