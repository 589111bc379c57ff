package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaleem-ai/vectorsearch/internal/search"
	"github.com/kaleem-ai/vectorsearch/internal/storage"
)

type fakeProducts struct {
	topK    int
	results []search.ProductResult
	err     error
}

func (f *fakeProducts) SimilarProducts(_ context.Context, _, _ string, topK int) ([]search.ProductResult, error) {
	f.topK = topK
	return f.results, f.err
}

type fakeUnified struct {
	merchantID string
	topK       int
	results    []search.UnifiedResult
}

func (f *fakeUnified) Search(_ context.Context, _, merchantID string, topK int) ([]search.UnifiedResult, error) {
	f.merchantID, f.topK = merchantID, topK
	return f.results, nil
}

type fakeBotFAQs struct {
	results []search.BotFAQResult
}

func (f *fakeBotFAQs) Search(context.Context, string, int) ([]search.BotFAQResult, error) {
	return f.results, nil
}

type fakeStatus map[string]uint64

func (f fakeStatus) CollectionInfo(_ context.Context, name string) (*storage.CollectionInfo, error) {
	n, ok := f[name]
	if !ok {
		return nil, storage.ErrCollectionNotFound
	}
	return &storage.CollectionInfo{Name: name, PointsCount: n}, nil
}

func newTestServer(t *testing.T, products *fakeProducts, unified *fakeUnified) *Server {
	t.Helper()
	s, err := NewServer(Config{
		Products: products,
		Unified:  unified,
		BotFAQs:  &fakeBotFAQs{results: []search.BotFAQResult{{ID: "b1", Question: "q", Answer: "a"}}},
		Status:   fakeStatus{storage.CollectionProducts: 12, storage.CollectionFAQs: 3},
	})
	require.NoError(t, err)
	return s
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(Config{})
	assert.Error(t, err)

	_, err = NewServer(Config{Products: &fakeProducts{}, Unified: &fakeUnified{}, BotFAQs: &fakeBotFAQs{}})
	assert.ErrorContains(t, err, "status reader")
}

func TestSearchProducts(t *testing.T) {
	products := &fakeProducts{results: []search.ProductResult{{ID: "p1", Name: "Mug"}}}
	s := newTestServer(t, products, &fakeUnified{})

	res, out, err := s.handleSearchProducts(context.Background(), nil,
		SearchProductsInput{MerchantID: "m1", Query: "mug", TopK: 50})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, maxProductTopK, products.topK)
}

func TestSearchProducts_EmptyAndErrors(t *testing.T) {
	products := &fakeProducts{}
	s := newTestServer(t, products, &fakeUnified{})
	ctx := context.Background()

	_, out, err := s.handleSearchProducts(ctx, nil, SearchProductsInput{MerchantID: "m1", Query: "mug"})
	require.NoError(t, err)
	assert.Equal(t, defaultTopK, products.topK)
	assert.NotNil(t, out.Results)
	assert.NotEmpty(t, out.Message)

	res, _, err := s.handleSearchProducts(ctx, nil, SearchProductsInput{Query: "mug"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.IsError)

	products.err = errors.New("embedding service unavailable")
	res, _, err = s.handleSearchProducts(ctx, nil, SearchProductsInput{MerchantID: "m1", Query: "mug"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content[0].(*mcp.TextContent).Text, "embedding service unavailable")
}

func TestUnifiedSearch(t *testing.T) {
	unified := &fakeUnified{results: []search.UnifiedResult{{Type: search.TypeWeb, ID: "w1"}}}
	s := newTestServer(t, &fakeProducts{}, unified)

	_, out, err := s.handleUnifiedSearch(context.Background(), nil,
		UnifiedSearchInput{MerchantID: "m1", Query: "returns", TopK: 30})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, "m1", unified.merchantID)
	assert.Equal(t, maxUnifiedTopK, unified.topK)
}

func TestStatus(t *testing.T) {
	s := newTestServer(t, &fakeProducts{}, &fakeUnified{})

	_, out, err := s.handleStatus(context.Background(), nil, StatusInput{})
	require.NoError(t, err)

	require.Len(t, out.Collections, len(storage.Collections))
	assert.Equal(t, CollectionStatus{Name: storage.CollectionProducts, PointsCount: 12}, out.Collections[0])
	assert.Equal(t, uint64(15), out.TotalPoints)
	assert.NotEmpty(t, out.Collections[1].Error)
}

func TestServer_ListsToolsOverTransport(t *testing.T) {
	s := newTestServer(t, &fakeProducts{}, &fakeUnified{})
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)

	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"search_products", "unified_search", "search_bot_faqs", "get_index_status"}, names)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "search_bot_faqs",
		Arguments: map[string]any{"query": "plans"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
}
