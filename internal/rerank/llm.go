// Package rerank orders search candidates by asking a chat model which of
// them best answer the query.
package rerank

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kaleem-ai/vectorsearch/internal/embedding"
	"github.com/kaleem-ai/vectorsearch/internal/logger"
)

// Reranker picks at most topN candidates, most relevant first, and returns
// their 0-based indices. An empty slice with a nil error means the model
// explicitly found nothing relevant; a reply it cannot use is an error.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []string, topN int) ([]int, error)
}

// Defaults for the LLM reranker.
const (
	DefaultBaseURL            = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultModel              = "gemini-2.0-flash"
	DefaultTimeout            = 15 * time.Second
	DefaultMaxCandidateLength = 300

	maxOutputTokens = 40
	temperature     = 0.1
)

// Config configures an LLMReranker.
type Config struct {
	BaseURL            string
	APIKey             string
	Model              string
	Timeout            time.Duration
	MaxCandidateLength int
	Parser             ResponseParser
	// RequestsTotal counts calls by outcome ("ok", "no_match", "error"), may be nil.
	RequestsTotal *prometheus.CounterVec
}

// LLMReranker reranks through any OpenAI-compatible chat completions API.
type LLMReranker struct {
	client        openai.Client
	apiKey        string
	model         string
	maxLen        int
	parser        ResponseParser
	requestsTotal *prometheus.CounterVec
	logger        *zap.Logger
}

// NewLLMReranker creates a reranker. A missing API key is not an error here;
// every call then fails with ErrRerankUnavailable so searches degrade.
func NewLLMReranker(cfg Config, log *zap.Logger) *LLMReranker {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxCandidateLength <= 0 {
		cfg.MaxCandidateLength = DefaultMaxCandidateLength
	}
	if cfg.Parser == nil {
		cfg.Parser = DefaultParser
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(0),
	)
	return &LLMReranker{
		client:        client,
		apiKey:        cfg.APIKey,
		model:         cfg.Model,
		maxLen:        cfg.MaxCandidateLength,
		parser:        cfg.Parser,
		requestsTotal: cfg.RequestsTotal,
		logger:        logger.OrNop(log),
	}
}

// Rerank asks the model for the topN best candidates.
func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []string, topN int) ([]int, error) {
	if r.apiKey == "" {
		r.observe("error")
		return nil, fmt.Errorf("%w: missing API key", ErrRerankUnavailable)
	}

	trimmed := make([]string, len(candidates))
	usable := 0
	for i, c := range candidates {
		trimmed[i] = embedding.Truncate(strings.TrimSpace(c), r.maxLen)
		if trimmed[i] != "" {
			usable++
		}
	}
	if usable == 0 {
		return nil, fmt.Errorf("%w: no candidates", ErrInvalidInput)
	}
	if topN <= 0 {
		topN = len(candidates)
	}

	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(buildPrompt(query, trimmed, topN)),
		},
		Model:       openai.ChatModel(r.model),
		MaxTokens:   openai.Int(maxOutputTokens),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		r.observe("error")
		return nil, fmt.Errorf("%w: %s", ErrRerankUnavailable, providerMessage(err))
	}
	if len(resp.Choices) == 0 {
		r.observe("error")
		return nil, fmt.Errorf("%w: empty completion", ErrRerankUnavailable)
	}

	reply := resp.Choices[0].Message.Content
	indices, noMatch := r.parser.Parse(reply, len(candidates))
	if noMatch {
		r.observe("no_match")
		r.logger.Debug("Reranker found no relevant candidate", zap.Int("candidates", len(candidates)))
		return []int{}, nil
	}
	if len(indices) == 0 {
		r.observe("error")
		return nil, fmt.Errorf("%w: no usable index in reply %q", ErrRerankUnavailable, embedding.Truncate(reply, 80))
	}
	r.observe("ok")
	return indices, nil
}

func (r *LLMReranker) observe(outcome string) {
	if r.requestsTotal != nil {
		r.requestsTotal.WithLabelValues(outcome).Inc()
	}
}

// buildPrompt numbers candidates from 1 and asks for a comma separated list
// or the no-match marker.
func buildPrompt(query string, candidates []string, topN int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "السؤال: %q\n", query)
	b.WriteString("هذه قائمة المنتجات أو الإجابات:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "(%d): %s\n", i+1, c)
	}
	fmt.Fprintf(&b, "اختر أفضل %d إجابات أو منتجات الأكثر صلة بالسؤال.\n", topN)
	b.WriteString("أعطني أرقامهم مفصولة بفواصل (مثال: 2,5,7).\n")
	fmt.Fprintf(&b, "إذا لا يوجد جواب دقيق أكتب %q.\n", NoMatchMarker+" دقيق")
	return b.String()
}

// providerMessage prefers the provider's own error message.
func providerMessage(err error) string {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
