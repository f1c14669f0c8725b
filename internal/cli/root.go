package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/coursemate/internal/app"
	"github.com/markdave123-py/coursemate/internal/config"
	"github.com/markdave123-py/coursemate/internal/logger"
)

type rootOptions struct {
	envFile  string
	logLevel string
}

// NewRootCmd builds the coursectl command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "coursectl",
		Short: "Ingest course material and query the knowledge base from the shell",
		Long: `coursectl runs the same ingestion pipeline and chat service as the API
server, without HTTP. Local files are accepted as references.

Example usage:
  coursectl ingest ./lecture-01.pdf
  coursectl ingest-dir ./semester --glob "**/*.pdf"
  coursectl ask "What is a B-tree?"
  coursectl classify ./recording.mp4`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env", "", "dotenv file to load (default is ./.env when present)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL")

	cmd.AddCommand(
		newIngestCmd(opts),
		newIngestDirCmd(opts),
		newAskCmd(opts),
		newClassifyCmd(),
	)
	return cmd
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.envFile != "" {
		cfg, err = config.LoadConfig(o.envFile)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

// openApp wires the full application with local references enabled.
func (o *rootOptions) openApp(ctx context.Context, stderr io.Writer) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.NewApp(ctx, cfg, app.Options{AllowLocal: true}, logger.New(cfg.LogLevel, stderr))
}
