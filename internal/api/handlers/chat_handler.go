package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/markdave123-py/coursemate/internal/logger"
	"github.com/markdave123-py/coursemate/internal/services"
)

const chatFailureMessage = "An internal error occurred while generating the answer."

// Asker answers one question from the knowledge base.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

type ChatHandler struct {
	chat Asker
	log  *slog.Logger
}

func NewChatHandler(chat Asker, log *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, log: logger.OrDiscard(log).With("component", "chat-handler")}
}

type ChatRequest struct {
	Question string `json:"question"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "No question provided")
		return
	}

	answer, err := h.chat.Ask(r.Context(), req.Question)
	if errors.Is(err, services.ErrEmptyQuestion) {
		writeError(w, http.StatusBadRequest, "No question provided")
		return
	}
	if err != nil {
		h.log.Error("chat failed", "err", err)
		writeError(w, http.StatusInternalServerError, chatFailureMessage)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}
