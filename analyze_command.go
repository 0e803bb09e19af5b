package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/olivier-w/beatframe/internal/analysis"
	"github.com/olivier-w/beatframe/internal/audio"
	"github.com/olivier-w/beatframe/internal/util"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var step float64

	cmd := &cobra.Command{
		Use:   "analyze <audio-file>",
		Short: "Print the smoothed band energy of a track over time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := args[0]
			if err := checkAudioPath(path); err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sig, err := audio.Decode(runCtx, path)
			if err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
			points, err := analysis.Profile(runCtx, sig, cfg.SamplerOptions(), cfg.Analysis.Smoothing, step)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderProfile(points))
			return nil
		},
	}

	cmd.Flags().Float64Var(&step, "step", 1, "Seconds between samples")
	return cmd
}

func renderProfile(points []analysis.ProfilePoint) string {
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{
			util.FormatDuration(time.Duration(p.Time * float64(time.Second))),
			formatLevel(p.Bands.Bass),
			formatLevel(p.Bands.Mid),
			formatLevel(p.Bands.Overall),
		})
	}
	return renderTable(
		[]string{"Time", "Bass", "Mid", "Overall"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
	)
}

func formatLevel(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
