package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kaleem-ai/vectorsearch/internal/logger"
)

const healthTimeout = 3 * time.Second

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Qdrant    string `json:"qdrant"`
	Timestamp string `json:"timestamp"`
}

// handleHealth handles GET /health. It returns 503 when Qdrant is unreachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{Timestamp: time.Now().UTC().Format(time.RFC3339)}

	if err := s.health.Health(ctx); err != nil {
		logger.FromContext(r.Context()).Warn("health check failed", zap.Error(err))
		resp.Status = "unhealthy"
		resp.Qdrant = "disconnected"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	resp.Status = "healthy"
	resp.Qdrant = "connected"
	writeJSON(w, http.StatusOK, resp)
}
