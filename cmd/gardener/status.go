package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"gardener/internal/domain"
)

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored patterns and items",
		Long:  "Print the pattern log and every recorded item from the database. No network access.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			ctx := context.Background()
			if err := a.openStores(ctx); err != nil {
				return err
			}

			patterns, err := a.patterns.LoadAll(ctx)
			if err != nil {
				return fmt.Errorf("load patterns: %w", err)
			}
			items, err := a.items.LoadAll(ctx)
			if err != nil {
				return fmt.Errorf("load items: %w", err)
			}

			out := cmd.OutOrStdout()
			renderPatterns(out, patterns)
			fmt.Fprintln(out)
			renderItems(out, items)
			return nil
		},
	}
}

func renderPatterns(w io.Writer, patterns []*domain.Pattern) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Patterns (%d effective)", len(domain.EffectivePatterns(patterns))))
	t.AppendHeader(table.Row{"ID", "Expression", "Added", "Retired"})
	for _, p := range patterns {
		retired := ""
		if at, ok := p.State.RetiredAt(); ok {
			retired = formatTime(at)
		}
		t.AppendRow(table.Row{p.ID, p.Expression, formatTime(p.AddedAt), retired})
	}
	t.Render()
}

func renderItems(w io.Writer, items []*domain.Item) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "External ID", "Title", "Pattern", "Added", "Downloaded", "File"})

	downloaded := 0
	for _, item := range items {
		pattern, completed := "", ""
		if item.PatternID != 0 {
			pattern = fmt.Sprint(item.PatternID)
		}
		if item.DownloadCompletedAt != nil {
			completed = formatTime(*item.DownloadCompletedAt)
			downloaded++
		}
		t.AppendRow(table.Row{item.ID, item.ExternalID, item.Title, pattern, formatTime(item.AddedAt), completed, item.PayloadPath})
	}
	t.SetTitle(fmt.Sprintf("Items (%d, %d downloaded)", len(items), downloaded))
	t.Render()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(time.DateTime)
}
