package mcp

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/kaleem-ai/vectorsearch/internal/logger"
	"github.com/kaleem-ai/vectorsearch/internal/search"
	"github.com/kaleem-ai/vectorsearch/internal/storage"
)

const (
	serverName    = "vectorsearch"
	serverVersion = "v0.1.0"
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

// StatusReader reads collection statistics.
type StatusReader interface {
	CollectionInfo(ctx context.Context, collection string) (*storage.CollectionInfo, error)
}

// Config holds server dependencies.
type Config struct {
	Products ProductSearcher
	Unified  UnifiedSearcher
	BotFAQs  BotFAQSearcher
	Status   StatusReader
	// Collections reported by get_index_status, storage.Collections when empty.
	Collections []string
	Logger      *zap.Logger
}

// Server wraps the MCP server with dependencies.
type Server struct {
	server      *mcp.Server
	products    ProductSearcher
	unified     UnifiedSearcher
	botFAQs     BotFAQSearcher
	status      StatusReader
	collections []string
	logger      *zap.Logger
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Products == nil || cfg.Unified == nil || cfg.BotFAQs == nil {
		return nil, errors.New("product, unified and bot FAQ searchers are required")
	}
	if cfg.Status == nil {
		return nil, errors.New("status reader is required")
	}
	collections := cfg.Collections
	if len(collections) == 0 {
		collections = storage.Collections
	}

	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    serverName,
			Version: serverVersion,
		}, nil),
		products:    cfg.Products,
		unified:     cfg.Unified,
		botFAQs:     cfg.BotFAQs,
		status:      cfg.Status,
		collections: collections,
		logger:      logger.OrNop(cfg.Logger),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_products",
		Description: "Find products of a merchant that match a free text description. Results are reranked for relevance and include price, offer and storefront link.",
	}, s.handleSearchProducts)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "unified_search",
		Description: "Search a merchant's FAQs, documents and crawled web pages with one query and return the best answers in a single ranking.",
	}, s.handleUnifiedSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_bot_faqs",
		Description: "Search the platform FAQs shared by all merchants.",
	}, s.handleSearchBotFAQs)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_index_status",
		Description: "Report the number of indexed points in every vector collection.",
	}, s.handleStatus)

	return s, nil
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler serves the tools over Streamable HTTP. Stateless disables
// session tracking.
func (s *Server) HTTPHandler(stateless bool) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, &mcp.StreamableHTTPOptions{Stateless: stateless})
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
