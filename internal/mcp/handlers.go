package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/kaleem-ai/vectorsearch/internal/search"
)

const (
	defaultTopK    = 5
	maxProductTopK = 10
	maxUnifiedTopK = 20
)

// handleSearchProducts runs the product similarity search for one merchant.
func (s *Server) handleSearchProducts(ctx context.Context, _ *mcp.CallToolRequest, input SearchProductsInput) (
	*mcp.CallToolResult, SearchProductsOutput, error,
) {
	query := strings.TrimSpace(input.Query)
	if query == "" || input.MerchantID == "" {
		return toolError("merchant_id and query are required"), SearchProductsOutput{}, nil
	}

	results, err := s.products.SimilarProducts(ctx, input.MerchantID, query, clamp(input.TopK, maxProductTopK))
	if err != nil {
		s.logger.Error("product search failed", zap.String("merchant_id", input.MerchantID), zap.Error(err))
		return toolError(fmt.Sprintf("Product search failed: %v", err)), SearchProductsOutput{}, nil
	}

	out := SearchProductsOutput{Results: results, Count: len(results)}
	if len(results) == 0 {
		out.Results = []search.ProductResult{}
		out.Message = "No matching products found. Try other words or a broader description."
	}
	return nil, out, nil
}

// handleUnifiedSearch searches FAQs, documents and web pages of one merchant.
func (s *Server) handleUnifiedSearch(ctx context.Context, _ *mcp.CallToolRequest, input UnifiedSearchInput) (
	*mcp.CallToolResult, UnifiedSearchOutput, error,
) {
	query := strings.TrimSpace(input.Query)
	if query == "" || input.MerchantID == "" {
		return toolError("merchant_id and query are required"), UnifiedSearchOutput{}, nil
	}

	results, err := s.unified.Search(ctx, query, input.MerchantID, clamp(input.TopK, maxUnifiedTopK))
	if err != nil {
		s.logger.Error("unified search failed", zap.String("merchant_id", input.MerchantID), zap.Error(err))
		return toolError(fmt.Sprintf("Unified search failed: %v", err)), UnifiedSearchOutput{}, nil
	}

	out := UnifiedSearchOutput{Results: results, Count: len(results)}
	if len(results) == 0 {
		out.Results = []search.UnifiedResult{}
		out.Message = "No relevant answer found in the merchant's knowledge."
	}
	return nil, out, nil
}

// handleSearchBotFAQs searches the platform FAQs.
func (s *Server) handleSearchBotFAQs(ctx context.Context, _ *mcp.CallToolRequest, input SearchBotFAQsInput) (
	*mcp.CallToolResult, SearchBotFAQsOutput, error,
) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return toolError("query is required"), SearchBotFAQsOutput{}, nil
	}

	results, err := s.botFAQs.Search(ctx, query, clamp(input.TopK, maxUnifiedTopK))
	if err != nil {
		s.logger.Error("bot FAQ search failed", zap.Error(err))
		return toolError(fmt.Sprintf("FAQ search failed: %v", err)), SearchBotFAQsOutput{}, nil
	}

	out := SearchBotFAQsOutput{Results: results, Count: len(results)}
	if len(results) == 0 {
		out.Results = []search.BotFAQResult{}
		out.Message = "No matching FAQ found."
	}
	return nil, out, nil
}

// handleStatus reports the point count of every collection. A collection
// that cannot be read is reported with its error instead of failing the tool.
func (s *Server) handleStatus(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (
	*mcp.CallToolResult, StatusOutput, error,
) {
	out := StatusOutput{Collections: make([]CollectionStatus, 0, len(s.collections))}
	for _, name := range s.collections {
		info, err := s.status.CollectionInfo(ctx, name)
		if err != nil {
			s.logger.Warn("collection info failed", zap.String("collection", name), zap.Error(err))
			out.Collections = append(out.Collections, CollectionStatus{Name: name, Error: err.Error()})
			continue
		}
		out.Collections = append(out.Collections, CollectionStatus{Name: name, PointsCount: info.PointsCount})
		out.TotalPoints += info.PointsCount
	}
	return nil, out, nil
}

func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}

// clamp returns topK within [1, limit], defaultTopK when unset.
func clamp(topK, limit int) int {
	if topK <= 0 {
		return defaultTopK
	}
	return min(topK, limit)
}
