package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/coursemate/internal/core/detector"
)

func newClassifyCmd() *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "classify <file>...",
		Short: "Print the file kind the pipeline would assign",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				kind := detector.Classify(data, filepath.Base(path), contentType)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", kind, path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "", "treat the file as served with this Content-Type")
	return cmd
}
