package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gardener/internal/source/catalog"
)

func newRatioCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ratio",
		Short: "Show uploaded and downloaded totals from the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signalContext(a.logger)
			defer cancel()

			sess, err := a.session(ctx, opts.interactive)
			if err != nil {
				return err
			}

			summary, err := catalog.New(sess, a.logger).RatioSummary(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Uploaded:   %s\n", summary.Uploaded)
			fmt.Fprintf(out, "Downloaded: %s\n", summary.Downloaded)
			if len(summary.Fields) > 0 {
				fmt.Fprintf(out, "\n%s\n", strings.Join(summary.Fields, " "))
			}
			return nil
		},
	}
}
