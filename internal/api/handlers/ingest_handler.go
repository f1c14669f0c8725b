package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	appMiddleware "github.com/markdave123-py/coursemate/internal/api/middlewares"
	"github.com/markdave123-py/coursemate/internal/core/ingestion_engine"
	"github.com/markdave123-py/coursemate/internal/logger"
)

const IngestAcceptedMessage = "Ingestion process started. The document will be available for queries in a few minutes."

type IngestHandler struct {
	ingestor ingestion_engine.Ingestor
	log      *slog.Logger
}

func NewIngestHandler(ing ingestion_engine.Ingestor, log *slog.Logger) *IngestHandler {
	return &IngestHandler{ingestor: ing, log: logger.OrDiscard(log).With("component", "ingest-handler")}
}

type ingestRequest struct {
	DriveLink string `json:"drive_link"`
}

// Ingest queues the linked file and answers 202 straight away.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	link := strings.TrimSpace(req.DriveLink)
	if link == "" {
		writeError(w, http.StatusBadRequest, "No 'drive_link' provided")
		return
	}

	job, err := h.ingestor.Enqueue(link)
	switch {
	case errors.Is(err, ingestion_engine.ErrQueueFull), errors.Is(err, ingestion_engine.ErrStopped):
		h.log.Warn("ingest rejected", "ref", link, "err", err)
		writeError(w, http.StatusServiceUnavailable, "Ingestion queue is full, please retry later.")
		return
	case err != nil:
		h.log.Error("enqueue failed", "ref", link, "err", err)
		writeError(w, http.StatusInternalServerError, "Could not start ingestion.")
		return
	}

	h.log.Info("ingest accepted", "job_id", job.ID(), "ref", link, "subject", appMiddleware.SubjectFrom(r.Context()))
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": IngestAcceptedMessage,
		"job_id":  job.ID(),
	})
}

// JobStatus reports the state of one ingestion job.
func (h *IngestHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := h.ingestor.Job(chi.URLParam(r, "jobID"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}
