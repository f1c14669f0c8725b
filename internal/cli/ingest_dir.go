package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/markdave123-py/coursemate/internal/core"
	"github.com/markdave123-py/coursemate/internal/core/detector"
	"github.com/markdave123-py/coursemate/internal/core/ingestion_engine"
)

// DefaultGlob walks the whole tree; MatchFiles keeps recognised materials.
const DefaultGlob = "**/*"

func newIngestDirCmd(opts *rootOptions) *cobra.Command {
	var (
		pattern string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "ingest-dir <dir>",
		Short: "Ingest every matching file under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("invalid path: %w", err)
			}
			files, err := MatchFiles(dir, pattern)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No files under %s match %q\n", dir, pattern)
				return nil
			}

			ctx := cmd.Context()
			a, err := opts.openApp(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if workers <= 0 {
				workers = a.Config.IngestWorkers
			}
			a.Ingestor.Start(ctx, workers)

			bar := newBar(cmd.ErrOrStderr(), len(files))
			failed, err := ingestAll(ctx, a.Ingestor, files, func(*ingestion_engine.Job) { _ = bar.Add(1) })
			if err != nil {
				return err
			}
			_ = bar.Finish()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nIngestion complete:\n")
			fmt.Fprintf(out, "  Files:  %d\n", len(files))
			fmt.Fprintf(out, "  Failed: %d\n", len(failed))
			for _, j := range failed {
				v := j.Snapshot()
				fmt.Fprintf(out, "  - %s: %s %s\n", v.Ref, v.Reason, v.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&pattern, "glob", "g", DefaultGlob, "doublestar pattern relative to <dir>")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "ingestion workers (default INGEST_WORKERS)")
	return cmd
}

// MatchFiles returns the absolute paths of regular files under dir matching
// pattern whose extension the detector recognises, in any letter case, sorted.
func MatchFiles(dir, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob %q", pattern)
	}
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if detector.FromFilename(m) == core.KindUnknown {
			continue
		}
		out = append(out, filepath.Join(dir, filepath.FromSlash(m)))
	}
	return out, nil
}

// ingestAll enqueues every ref, waiting for the oldest outstanding job
// whenever the queue is full. done runs once per finished job, in
// submission order. It returns the jobs that did not complete.
func ingestAll(ctx context.Context, ing ingestion_engine.Ingestor, refs []string, done func(*ingestion_engine.Job)) ([]*ingestion_engine.Job, error) {
	var pending, failed []*ingestion_engine.Job

	waitOldest := func() error {
		j := pending[0]
		pending = pending[1:]
		out, err := j.Wait(ctx)
		if err != nil {
			return err
		}
		if !out.OK() {
			failed = append(failed, j)
		}
		done(j)
		return nil
	}

	for _, ref := range refs {
		for {
			job, err := ing.Enqueue(ref)
			if err == nil {
				pending = append(pending, job)
				break
			}
			if !errors.Is(err, ingestion_engine.ErrQueueFull) || len(pending) == 0 {
				return failed, err
			}
			if err := waitOldest(); err != nil {
				return failed, err
			}
		}
	}
	for len(pending) > 0 {
		if err := waitOldest(); err != nil {
			return failed, err
		}
	}
	return failed, nil
}

func newBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
