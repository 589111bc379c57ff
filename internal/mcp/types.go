// Package mcp exposes the search operations as MCP tools.
package mcp

import "github.com/kaleem-ai/vectorsearch/internal/search"

// SearchProductsInput defines the input parameters for the search_products tool.
type SearchProductsInput struct {
	// MerchantID scopes the search to one store.
	MerchantID string `json:"merchant_id" jsonschema:"the merchant whose catalog is searched"`
	// Query describes the wanted product.
	Query string `json:"query" jsonschema:"free text describing the product, any language"`
	// TopK is the maximum number of products to return.
	TopK int `json:"top_k,omitempty" jsonschema:"number of products to return, 1 to 10 (default: 5)"`
}

// SearchProductsOutput contains the matching products, best first.
type SearchProductsOutput struct {
	Results []search.ProductResult `json:"results"`
	Count   int                    `json:"count"`
	// Message provides informational context (e.g. no matches).
	Message string `json:"message,omitempty"`
}

// UnifiedSearchInput defines the input parameters for the unified_search tool.
type UnifiedSearchInput struct {
	MerchantID string `json:"merchant_id" jsonschema:"the merchant whose knowledge is searched"`
	Query      string `json:"query" jsonschema:"the customer question"`
	TopK       int    `json:"top_k,omitempty" jsonschema:"number of results to return, 1 to 20 (default: 5)"`
}

// UnifiedSearchOutput contains FAQ, document and web hits in one ranking.
type UnifiedSearchOutput struct {
	Results []search.UnifiedResult `json:"results"`
	Count   int                    `json:"count"`
	Message string                 `json:"message,omitempty"`
}

// SearchBotFAQsInput defines the input parameters for the search_bot_faqs tool.
type SearchBotFAQsInput struct {
	Query string `json:"query" jsonschema:"the question about the platform"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of FAQs to return, 1 to 20 (default: 5)"`
}

// SearchBotFAQsOutput contains the matching platform FAQs.
type SearchBotFAQsOutput struct {
	Results []search.BotFAQResult `json:"results"`
	Count   int                   `json:"count"`
	Message string                `json:"message,omitempty"`
}

// StatusInput defines the input parameters for the get_index_status tool.
// This tool takes no parameters.
type StatusInput struct{}

// CollectionStatus is the point count of one collection.
type CollectionStatus struct {
	Name        string `json:"name"`
	PointsCount uint64 `json:"points_count"`
	// Error is set when the collection could not be read.
	Error string `json:"error,omitempty"`
}

// StatusOutput reports every collection of the index.
type StatusOutput struct {
	Collections []CollectionStatus `json:"collections"`
	TotalPoints uint64             `json:"total_points"`
}
