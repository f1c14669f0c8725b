package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/markdave123-py/coursemate/internal/core/ingestion_engine"
	"github.com/markdave123-py/coursemate/internal/logger"
)

// Counter reports how many chunks are indexed.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

type HealthHandler struct {
	capabilities map[string]bool
	store        Counter
	ingestor     ingestion_engine.Ingestor
	log          *slog.Logger
}

func NewHealthHandler(caps map[string]bool, store Counter, ing ingestion_engine.Ingestor, log *slog.Logger) *HealthHandler {
	return &HealthHandler{capabilities: caps, store: store, ingestor: ing, log: logger.OrDiscard(log)}
}

type healthResponse struct {
	Status       string                 `json:"status"`
	Capabilities map[string]bool        `json:"capabilities"`
	Indexed      int                    `json:"indexed"`
	Jobs         ingestion_engine.Stats `json:"jobs"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Count(r.Context())
	if err != nil {
		h.log.Error("health check: count failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		Capabilities: h.capabilities,
		Indexed:      n,
		Jobs:         h.ingestor.Stats(),
	})
}
