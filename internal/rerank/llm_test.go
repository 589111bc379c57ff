package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// chatServer answers every completion with reply and records the request.
func chatServer(t *testing.T, status int, reply string, got *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"API key not valid","type":"invalid_request_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "rerank_test"}, []string{"outcome"})
}

func TestLLMReranker_ParsesIndices(t *testing.T) {
	var req chatRequest
	srv := chatServer(t, http.StatusOK, "3, 1", &req)
	counter := newCounter()
	r := NewLLMReranker(Config{BaseURL: srv.URL, APIKey: "k", Model: "test-model", RequestsTotal: counter}, nil)

	got, err := r.Rerank(context.Background(), "coffee", []string{"tea", "coffee beans", "coffee mug"}, 2)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 0}, got)
	assert.Equal(t, "test-model", req.Model)
	assert.Equal(t, 40, req.MaxTokens)
	assert.InDelta(t, 0.1, req.Temperature, 1e-9)
	require.Len(t, req.Messages, 1)
	assert.Contains(t, req.Messages[0].Content, "(2): coffee beans")
	assert.InDelta(t, 1, testutil.ToFloat64(counter.WithLabelValues("ok")), 1e-9)
}

func TestLLMReranker_NoMatchMarker(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "لا يوجد جواب دقيق", nil)
	counter := newCounter()
	r := NewLLMReranker(Config{BaseURL: srv.URL, APIKey: "k", RequestsTotal: counter}, nil)

	got, err := r.Rerank(context.Background(), "q", []string{"a", "b"}, 2)
	require.NoError(t, err)

	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.InDelta(t, 1, testutil.ToFloat64(counter.WithLabelValues("no_match")), 1e-9)
}

func TestLLMReranker_UnusableReplyIsUnavailable(t *testing.T) {
	for name, reply := range map[string]string{
		"empty completion":  "",
		"no digits":         "Sorry, I cannot help with that.",
		"only out of range": "99",
	} {
		t.Run(name, func(t *testing.T) {
			srv := chatServer(t, http.StatusOK, reply, nil)
			counter := newCounter()
			r := NewLLMReranker(Config{BaseURL: srv.URL, APIKey: "k", RequestsTotal: counter}, nil)

			got, err := r.Rerank(context.Background(), "q", []string{"a", "b"}, 2)
			assert.ErrorIs(t, err, ErrRerankUnavailable)
			assert.Nil(t, got)
			assert.InDelta(t, 1, testutil.ToFloat64(counter.WithLabelValues("error")), 1e-9)
			assert.InDelta(t, 0, testutil.ToFloat64(counter.WithLabelValues("no_match")), 1e-9)
		})
	}
}

func TestLLMReranker_TruncatesCandidates(t *testing.T) {
	var req chatRequest
	srv := chatServer(t, http.StatusOK, "1", &req)
	r := NewLLMReranker(Config{BaseURL: srv.URL, APIKey: "k", MaxCandidateLength: 5}, nil)

	_, err := r.Rerank(context.Background(), "q", []string{"abcdefghij"}, 1)
	require.NoError(t, err)

	assert.Contains(t, req.Messages[0].Content, "(1): abcde\n")
	assert.NotContains(t, req.Messages[0].Content, "abcdef")
}

func TestLLMReranker_MissingAPIKey(t *testing.T) {
	r := NewLLMReranker(Config{BaseURL: "http://127.0.0.1:1"}, nil)

	_, err := r.Rerank(context.Background(), "q", []string{"a"}, 1)
	assert.ErrorIs(t, err, ErrRerankUnavailable)
}

func TestLLMReranker_NoCandidates(t *testing.T) {
	r := NewLLMReranker(Config{APIKey: "k"}, nil)

	_, err := r.Rerank(context.Background(), "q", []string{"", "  "}, 1)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = r.Rerank(context.Background(), "q", nil, 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLLMReranker_ProviderError(t *testing.T) {
	srv := chatServer(t, http.StatusUnauthorized, "", nil)
	r := NewLLMReranker(Config{BaseURL: srv.URL, APIKey: "bad"}, nil)

	_, err := r.Rerank(context.Background(), "q", []string{"a"}, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRerankUnavailable)
	assert.Contains(t, err.Error(), "API key not valid")
}
