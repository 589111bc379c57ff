package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Transport performs a single embedding request against baseURL.
type Transport interface {
	Embed(ctx context.Context, baseURL, text string) ([][]float32, error)
}

// DefaultEndpointPath is appended to the base URL by HTTPTransport.
const DefaultEndpointPath = "/embed"

const maxErrorBody = 512

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// HTTPTransport talks to a self-hosted embedding service:
// POST {baseURL}{endpointPath} {"texts":[...]} -> {"embeddings":[[...]]}.
type HTTPTransport struct {
	client       *http.Client
	endpointPath string
}

// NewHTTPTransport creates a transport whose requests are bounded by timeout.
func NewHTTPTransport(timeout time.Duration, endpointPath string) *HTTPTransport {
	if endpointPath == "" {
		endpointPath = DefaultEndpointPath
	}
	if !strings.HasPrefix(endpointPath, "/") {
		endpointPath = "/" + endpointPath
	}
	return &HTTPTransport{
		client:       &http.Client{Timeout: timeout},
		endpointPath: endpointPath,
	}
}

// Embed posts one text and decodes the embeddings array.
func (t *HTTPTransport) Embed(ctx context.Context, baseURL, text string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Texts: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(baseURL, "/") + t.endpointPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", ErrUnexpectedResponse, err)
	}
	return out.Embeddings, nil
}

// OpenAITransport calls any OpenAI-compatible /embeddings endpoint.
type OpenAITransport struct {
	client openai.Client
	model  string
	dim    int
}

// NewOpenAITransport creates a transport for OpenAI-compatible providers.
// dim is sent as the requested output dimensionality when positive.
func NewOpenAITransport(apiKey, model string, dim int, timeout time.Duration) *OpenAITransport {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(0), // retries are owned by Client
	)
	return &OpenAITransport{client: client, model: model, dim: dim}
}

// Embed requests one embedding from baseURL.
func (t *OpenAITransport) Embed(ctx context.Context, baseURL, text string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
		Model: openai.EmbeddingModel(t.model),
	}
	if t.dim > 0 {
		params.Dimensions = openai.Int(int64(t.dim))
	}

	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	resp, err := t.client.Embeddings.New(ctx, params, option.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vectors[i] = toFloat32(data.Embedding)
	}
	return vectors, nil
}

// toFloat32 converts []float64 to []float32.
// The API returns float64, the vector store takes float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
