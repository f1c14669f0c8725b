package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var showSources bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed material",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.openApp(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			question := strings.Join(args, " ")
			out := cmd.OutOrStdout()
			if showSources {
				hits, err := a.Chat.Retrieve(ctx, question)
				if err != nil {
					return err
				}
				for _, h := range hits {
					fmt.Fprintf(out, "[%.3f] %s\n", h.Score, h.ID)
				}
				fmt.Fprintln(out)
			}
			answer, err := a.Chat.Ask(ctx, question)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, answer)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSources, "sources", false, "print the retrieved chunk ids and scores")
	return cmd
}
