package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/coursemate/internal/core/ingestion_engine"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <ref>",
		Short: "Ingest one reference and wait for it to finish",
		Long: `Ingest a Drive link, http(s) URL, s3://bucket/key or local path.
The final job state is printed as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.openApp(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			a.Ingestor.Start(ctx, 1)
			job, err := a.Ingestor.Enqueue(args[0])
			if err != nil {
				return err
			}
			out, err := job.Wait(ctx)
			if err != nil {
				return err
			}
			if err := printJob(cmd.OutOrStdout(), job); err != nil {
				return err
			}
			if !out.OK() {
				return fmt.Errorf("ingestion failed: %s", out.Reason)
			}
			return nil
		},
	}
}

func printJob(w io.Writer, job *ingestion_engine.Job) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(job.Snapshot())
}
