package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/markdave123-py/coursemate/internal/config"
	"github.com/markdave123-py/coursemate/internal/core"
	"github.com/markdave123-py/coursemate/internal/core/chunker"
	"github.com/markdave123-py/coursemate/internal/core/command"
	db "github.com/markdave123-py/coursemate/internal/core/database"
	"github.com/markdave123-py/coursemate/internal/core/extractors"
	"github.com/markdave123-py/coursemate/internal/core/fetcher"
	"github.com/markdave123-py/coursemate/internal/core/indexer"
	"github.com/markdave123-py/coursemate/internal/core/ingestion_engine"
	"github.com/markdave123-py/coursemate/internal/core/llm"
	objectclient "github.com/markdave123-py/coursemate/internal/core/object-client"
	"github.com/markdave123-py/coursemate/internal/core/ocr"
	"github.com/markdave123-py/coursemate/internal/logger"
	"github.com/markdave123-py/coursemate/internal/services"
)

// App holds the wired components shared by the HTTP server and the CLI.
type App struct {
	Config   *config.Config
	Store    core.VectorStore
	Tools    extractors.Tools
	Pipeline *ingestion_engine.Pipeline
	Ingestor *ingestion_engine.DocumentIngestor
	Chat     *services.ChatService
	Server   *Server

	closers []io.Closer
	log     *slog.Logger
}

// Options adjust wiring for non-server callers.
type Options struct {
	// AllowLocal lets the fetcher read file:// and bare path references.
	AllowLocal bool
}

func NewApp(ctx context.Context, cfg *config.Config, opts Options, log *slog.Logger) (*App, error) {
	log = logger.OrDiscard(log)
	a := &App{Config: cfg, log: log}

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	store, err := db.NewVectorStore(initCtx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, store)
	log.Info("vector store ready", "backend", cfg.VectorStore, "collection", cfg.CollectionName)

	embedder, err := a.newEmbedder(initCtx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
	}
	llmProvider, err := a.newLLM(initCtx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("couldn't initialize the llm: %w", err)
	}

	var objects objectclient.ObjectClient
	if s3, err := objectclient.NewS3Client(initCtx, objectclient.S3Options{
		Region:    cfg.AwsRegion,
		AccessKey: cfg.AwsAccessKey,
		SecretKey: cfg.AwsSecretKey,
		Timeout:   cfg.FetchTimeout,
	}, log); err != nil {
		log.Warn("s3 references disabled", "err", err)
	} else {
		objects = s3
	}

	f := fetcher.New(fetcher.Options{
		Client:     &http.Client{Timeout: cfg.FetchTimeout},
		MaxBytes:   cfg.FetchMaxBytes,
		RPS:        cfg.FetchRPS,
		S3:         objects,
		AllowLocal: opts.AllowLocal,
	}, log)

	runner := command.ExecRunner{}
	var engine ocr.Engine
	if e, ok := ocr.NewDefault(runner, ocr.Languages(cfg.OCRLangs)); ok {
		engine = e
	}
	var transcriber core.Transcriber
	if cfg.GenProvider == config.GenProviderGroq && cfg.GenAPIKey != "" {
		transcriber = llm.NewWhisperTranscriber(cfg.GenBaseURL, cfg.GenAPIKey, cfg.TranscribeModel)
	}
	a.Tools = extractors.Probe(runner, engine, transcriber)
	for name, ok := range a.Tools.Capabilities() {
		if !ok {
			log.Warn("capability unavailable", "capability", name)
		}
	}
	registry := extractors.NewRegistry(a.Tools, extractors.Options{
		PageWorkers: cfg.PageWorkers,
		OCRScale:    cfg.OCRScale,
	}, log)

	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Pipeline = ingestion_engine.NewPipeline(f, registry, ch, indexer.New(embedder, store, log), log)
	a.Ingestor = ingestion_engine.NewDocumentIngestor(a.Pipeline, ingestion_engine.IngestConfig{
		QueueSize:  cfg.IngestQueue,
		History:    cfg.JobHistory,
		JobTimeout: cfg.JobTimeout,
	}, log)
	a.Chat = services.NewChatService(embedder, store, llmProvider, cfg.TopK, log)
	a.Server = NewServer(cfg, a.Ingestor, a.Chat, store, a.Tools.Capabilities(), log)
	return a, nil
}

func (a *App) newEmbedder(ctx context.Context) (core.EmbeddingProvider, error) {
	cfg := a.Config
	switch cfg.EmbedProvider {
	case config.EmbedProviderOpenAI:
		return llm.NewOpenAIEmbedder(cfg.EmbedBaseURL, cfg.EmbedAPIKey, cfg.EmbedModel), nil
	default:
		e, err := llm.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, e)
		return e, nil
	}
}

func (a *App) newLLM(ctx context.Context) (core.LLMProvider, error) {
	cfg := a.Config
	switch cfg.GenProvider {
	case config.GenProviderGemini:
		g, err := llm.NewGeminiLLM(ctx, cfg.GeminiAPIKey, cfg.GenModel, cfg.GenRPS)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, g)
		return g, nil
	default:
		return llm.NewChatLLM(cfg.GenBaseURL, cfg.GenAPIKey, cfg.GenModel, cfg.GenRPS), nil
	}
}

// Run starts the workers and the HTTP server and blocks until ctx ends.
func (a *App) Run(ctx context.Context) error {
	a.Ingestor.Start(ctx, a.Config.IngestWorkers)

	errCh := make(chan error, 1)
	go func() { errCh <- a.Server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	select {
	case <-a.Ingestor.Stopped():
	case <-shutdownCtx.Done():
		a.log.Warn("ingestion workers still busy at shutdown")
	}
	return nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
