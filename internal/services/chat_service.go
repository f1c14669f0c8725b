package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/markdave123-py/coursemate/internal/core"
	"github.com/markdave123-py/coursemate/internal/logger"
	"github.com/markdave123-py/coursemate/internal/models"
)

// NoInformationAnswer is returned without calling the model when retrieval
// finds nothing.
const NoInformationAnswer = "I'm sorry, but I don't have that information in my knowledge base."

// DefaultTopK is how many chunks ground an answer.
const DefaultTopK = 5

const SystemPrompt = `You are a helpful AI teaching assistant for the course Learning Management System.
Your goal is to answer student questions based ONLY on the provided course materials.

Follow these rules STRICTLY:
1. Use ONLY the 'Provided Context' below to answer the question.
2. If the answer is not in the context, clearly state: "` + NoInformationAnswer + `"
3. Do not make up answers or use any external knowledge.
4. Be concise and direct in your response.`

// ErrEmptyQuestion is returned for a blank question.
var ErrEmptyQuestion = errors.New("no question provided")

// ChatService answers questions from the indexed course material.
type ChatService struct {
	embedder core.EmbeddingProvider
	store    core.VectorStore
	llm      core.LLMProvider
	topK     int
	log      *slog.Logger
}

func NewChatService(emb core.EmbeddingProvider, store core.VectorStore, llm core.LLMProvider, topK int, log *slog.Logger) *ChatService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &ChatService{
		embedder: emb,
		store:    store,
		llm:      llm,
		topK:     topK,
		log:      logger.OrDiscard(log).With("component", "chat"),
	}
}

// Ask embeds the question, retrieves the nearest chunks and asks the model
// to answer from them alone.
func (s *ChatService) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	hits, err := s.Retrieve(ctx, question)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		s.log.Info("no context found", "question_len", len(question))
		return NoInformationAnswer, nil
	}

	answer, err := s.llm.Generate(ctx, SystemPrompt, UserPrompt(JoinContext(hits), question))
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	s.log.Info("question answered", "hits", len(hits), "answer_len", len(answer))
	return strings.TrimSpace(answer), nil
}

// Retrieve returns the top chunks for question, best first.
func (s *ChatService) Retrieve(ctx context.Context, question string) ([]models.ScoredChunk, error) {
	vecs, err := s.embedder.EmbedTexts(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embed question: got %d vectors", len(vecs))
	}

	hits, err := s.store.Query(ctx, vecs[0], s.topK)
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}
	return hits, nil
}

// JoinContext concatenates chunk texts in rank order.
func JoinContext(hits []models.ScoredChunk) string {
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	return strings.Join(texts, "\n\n")
}

func UserPrompt(material, question string) string {
	return "Provided Context:\n---\n" + material + "\n---\n\nStudent Question: " + question + "\n\nAnswer:"
}
