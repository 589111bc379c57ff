package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/kaleem-ai/vectorsearch/internal/search"
)

const (
	defaultTopK    = 5
	maxProductTopK = 10
	maxUnifiedTopK = 20
)

type productsRequest struct {
	MerchantID string `json:"merchantId"`
	Text       string `json:"text"`
	TopK       *int   `json:"topK"`
}

type productsResponse struct {
	Recommendations []search.ProductResult `json:"recommendations"`
	Count           int                    `json:"count"`
	Query           string                 `json:"query"`
}

type unifiedRequest struct {
	MerchantID string `json:"merchantId"`
	Query      string `json:"query"`
	TopK       any    `json:"topK"`
}

type unifiedResponse struct {
	Results []search.UnifiedResult `json:"results"`
	Count   int                    `json:"count"`
	Query   string                 `json:"query"`
}

type botFAQsRequest struct {
	Query string `json:"query"`
	TopK  any    `json:"topK"`
}

type botFAQsResponse struct {
	Results []search.BotFAQResult `json:"results"`
	Count   int                   `json:"count"`
	Query   string                `json:"query"`
}

// handleProductsPost handles POST /vector/products.
func (s *Server) handleProductsPost(w http.ResponseWriter, r *http.Request) {
	var req productsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	topK := defaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	s.searchProducts(w, r, req.MerchantID, req.Text, topK)
}

// handleProductsGet handles GET /vector/products?merchantId=&text=&topK=.
func (s *Server) handleProductsGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	topK := defaultTopK
	if raw := q.Get("topK"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "topK must be an integer")
			return
		}
		topK = n
	}
	s.searchProducts(w, r, q.Get("merchantId"), q.Get("text"), topK)
}

func (s *Server) searchProducts(w http.ResponseWriter, r *http.Request, merchantID, text string, topK int) {
	text = strings.TrimSpace(text)
	if text == "" || merchantID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "text and merchantId are required")
		return
	}
	if topK < 1 || topK > maxProductTopK {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("topK must be between 1 and %d", maxProductTopK))
		return
	}

	recs, err := s.products.SimilarProducts(r.Context(), merchantID, text, topK)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if recs == nil {
		recs = []search.ProductResult{}
	}
	writeOK(w, productsResponse{Recommendations: recs, Count: len(recs), Query: text})
}

// handleUnified handles POST /vector/unified.
func (s *Server) handleUnified(w http.ResponseWriter, r *http.Request) {
	var req unifiedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	query := strings.TrimSpace(req.Query)
	if req.MerchantID == "" || query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "merchantId and query are required")
		return
	}

	topK := clampTopK(req.TopK, maxUnifiedTopK)
	results, err := s.unified.Search(r.Context(), query, req.MerchantID, topK)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if results == nil {
		results = []search.UnifiedResult{}
	}
	writeOK(w, unifiedResponse{Results: results, Count: len(results), Query: query})
}

// handleBotFAQs handles POST /vector/bot-faqs/search.
func (s *Server) handleBotFAQs(w http.ResponseWriter, r *http.Request) {
	var req botFAQsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query is required")
		return
	}

	topK := clampTopK(req.TopK, maxUnifiedTopK)
	results, err := s.botFAQs.Search(r.Context(), query, topK)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if results == nil {
		results = []search.BotFAQResult{}
	}
	writeOK(w, botFAQsResponse{Results: results, Count: len(results), Query: query})
}

// clampTopK reads a loosely typed topK and clamps it to [1, limit].
// Missing, zero or unparsable values become the default.
func clampTopK(raw any, limit int) int {
	k := 0
	switch v := raw.(type) {
	case float64:
		k = int(v)
	case string:
		k, _ = strconv.Atoi(strings.TrimSpace(v))
	}
	if k == 0 {
		k = defaultTopK
	}
	return min(max(k, 1), limit)
}
