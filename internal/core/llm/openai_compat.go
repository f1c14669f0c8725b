package llm

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/markdave123-py/coursemate/internal/core"
)

// GroqBaseURL is the OpenAI-compatible endpoint of Groq.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// Temperature keeps answers close to the retrieved context.
const Temperature = 0.2

func newClient(baseURL, apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), int(math.Max(1, math.Ceil(rps))))
}

// ChatLLM generates answers through any OpenAI-compatible chat endpoint
// (Groq by default).
type ChatLLM struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

func NewChatLLM(baseURL, apiKey, model string, rps float64) *ChatLLM {
	if baseURL == "" {
		baseURL = GroqBaseURL
	}
	return &ChatLLM{client: newClient(baseURL, apiKey), model: model, limiter: newLimiter(rps)}
}

func (c *ChatLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no response generated")
	}
	return resp.Choices[0].Message.Content, nil
}

// OpenAIEmbedder embeds through an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	batchSize int
}

func NewOpenAIEmbedder(baseURL, apiKey, model string) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: newClient(baseURL, apiKey), model: model, batchSize: MaxEmbedBatch}
}

func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, part := range Batches(texts, e.batchSize) {
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: part,
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, fmt.Errorf("embeddings: %w", err)
		}
		if len(resp.Data) != len(part) {
			return nil, fmt.Errorf("embeddings: got %d vectors for %d texts", len(resp.Data), len(part))
		}
		vecs := make([][]float32, len(part))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(part) {
				return nil, fmt.Errorf("embeddings: index %d out of range", d.Index)
			}
			vecs[d.Index] = d.Embedding
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// WhisperTranscriber sends audio files to an OpenAI-compatible
// /audio/transcriptions endpoint.
type WhisperTranscriber struct {
	client *openai.Client
	model  string
}

func NewWhisperTranscriber(baseURL, apiKey, model string) *WhisperTranscriber {
	if baseURL == "" {
		baseURL = GroqBaseURL
	}
	return &WhisperTranscriber{client: newClient(baseURL, apiKey), model: model}
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: audioPath,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", audioPath, err)
	}
	return resp.Text, nil
}

var (
	_ core.LLMProvider       = (*ChatLLM)(nil)
	_ core.EmbeddingProvider = (*OpenAIEmbedder)(nil)
	_ core.Transcriber       = (*WhisperTranscriber)(nil)
)
