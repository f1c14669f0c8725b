package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/markdave123-py/coursemate/internal/app"
	"github.com/markdave123-py/coursemate/internal/config"
	"github.com/markdave123-py/coursemate/internal/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle SIGINT/SIGTERM for graceful shutdown
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()
	}()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	l := logger.New(cfg.LogLevel, os.Stderr)

	application, err := app.NewApp(ctx, cfg, app.Options{}, l)
	if err != nil {
		l.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer application.Close()

	l.Info("coursemate is running", "port", cfg.Port, "store", cfg.VectorStore)
	if err := application.Run(ctx); err != nil {
		l.Error("server stopped", "err", err)
		return
	}
	l.Info("shutting down...")
}
