package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kaleem-ai/vectorsearch/internal/embedding"
	"github.com/kaleem-ai/vectorsearch/internal/logger"
	"github.com/kaleem-ai/vectorsearch/internal/rerank"
	"github.com/kaleem-ai/vectorsearch/internal/search"
	"github.com/kaleem-ai/vectorsearch/internal/storage"
)

// Error codes returned in the error body.
const (
	codeBadRequest         = "bad_request"
	codeValidationFailed   = "validation_failed"
	codeServiceUnavailable = "service_unavailable"
	codeInternalError      = "internal_error"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

// errorMapping maps a sentinel to a status and code. The sentinel text is
// what the client sees. Invalid input sentinels come first.
type errorMapping struct {
	sentinel error
	status   int
	code     string
}

var errorMappings = []errorMapping{
	{search.ErrInvalidInput, http.StatusBadRequest, codeValidationFailed},
	{embedding.ErrInvalidInput, http.StatusBadRequest, codeValidationFailed},
	{storage.ErrInvalidInput, http.StatusBadRequest, codeValidationFailed},
	{rerank.ErrInvalidInput, http.StatusBadRequest, codeValidationFailed},
	{embedding.ErrEmbeddingUnavailable, http.StatusServiceUnavailable, codeServiceUnavailable},
	{embedding.ErrDimensionMismatch, http.StatusServiceUnavailable, codeServiceUnavailable},
	{storage.ErrStoreUnavailable, http.StatusServiceUnavailable, codeServiceUnavailable},
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			log.Warn("request failed", zap.Error(err))
			writeError(w, m.status, m.code, m.sentinel.Error())
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{Error: &errorBody{Code: code, Message: message}})
}
