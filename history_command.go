package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/olivier-w/beatframe/internal/history"
	"github.com/olivier-w/beatframe/internal/util"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var prune int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent render jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.Output.StateDir)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if cmd.Flags().Changed("prune") {
				removed, err := store.Prune(cmd.Context(), prune)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d job(s)\n", removed)
				return nil
			}

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No renders recorded yet")
				return nil
			}
			fmt.Fprintln(out, renderHistory(entries, time.Now()))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to show (0 shows all)")
	cmd.Flags().IntVar(&prune, "prune", 0, "Delete all but the newest N jobs")
	return cmd
}

func renderHistory(entries []history.Entry, now time.Time) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		size := "-"
		if e.Bytes > 0 {
			size = humanize.Bytes(uint64(e.Bytes))
		}
		elapsed := "-"
		if e.FinishedAt != nil {
			elapsed = util.FormatDuration(e.Elapsed())
		}
		rows = append(rows, []string{
			humanize.RelTime(e.StartedAt, now, "ago", "from now"),
			e.ProjectID,
			e.Format,
			fmt.Sprintf("%dx%d@%d", e.Width, e.Height, e.FrameRate),
			e.Status,
			strconv.Itoa(e.Frames),
			size,
			elapsed,
			e.ErrorMessage,
		})
	}
	return renderTable(
		[]string{"Started", "Project", "Format", "Video", "Status", "Frames", "Size", "Elapsed", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}
