package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/olivier-w/beatframe/internal/audio"
	"github.com/olivier-w/beatframe/internal/compositor"
	"github.com/olivier-w/beatframe/internal/config"
	"github.com/olivier-w/beatframe/internal/history"
	"github.com/olivier-w/beatframe/internal/logging"
	"github.com/olivier-w/beatframe/internal/preview"
	"github.com/olivier-w/beatframe/internal/render"
	"github.com/olivier-w/beatframe/internal/ui"
	"github.com/olivier-w/beatframe/internal/util"
)

const thumbnailInterval = 250 * time.Millisecond

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var project string
	var outDir string
	var plain bool

	cmd := &cobra.Command{
		Use:   "render <audio-file>",
		Short: "Render an audio file into a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			path := args[0]
			if err := checkAudioPath(path); err != nil {
				return err
			}

			meta := audio.ReadMetadata(path)
			snap := cfg.Snapshot()
			applyMetadata(&snap, meta)
			if strings.TrimSpace(project) == "" {
				project = meta.Title
			}

			assets, err := compositor.LoadAssets(cfg.Logo.Image, cfg.Background.Image)
			if err != nil {
				return err
			}

			store, err := history.Open(cfg.Output.StateDir)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			interactive := !plain && isTerminal(os.Stdout)
			opts := renderOptions(cfg, assets, logger, store)
			var feed *ui.Feed
			if interactive {
				feed = ui.NewFeed(preview.NewRenderer(), thumbnailInterval)
				opts.OnProgress = feed.OnProgress
				opts.OnFrame = feed.OnFrame
			} else {
				opts.OnProgress = progressLogger(logger)
			}

			renderer, err := render.New(opts)
			if err != nil {
				return err
			}
			job, err := renderer.Start(runCtx, render.Request{
				ProjectID: project,
				AudioPath: path,
				Snapshot:  snap,
			})
			if err != nil {
				return err
			}

			var res *render.Result
			if interactive {
				res, err = runInteractive(runCtx, job, feed, meta)
			} else {
				res, err = job.Wait()
			}
			if err != nil {
				if render.IsCancellation(err) {
					fmt.Fprintln(cmd.ErrOrStderr(), "Render cancelled; nothing was written.")
					return context.Canceled
				}
				return err
			}

			dir := outDir
			if dir == "" {
				dir = cfg.Output.Dir
			}
			dest, err := render.SaveContainer(dir, res.Name, res.Container)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s, %d frames, %s)\n",
				dest, humanize.Bytes(uint64(len(res.Container))), res.Frames, util.FormatDuration(res.Duration))
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project name used for the output file (defaults to the track title)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (defaults to output.dir)")
	cmd.Flags().BoolVar(&plain, "plain", false, "Log progress instead of showing the interactive screen")
	return cmd
}

func checkAudioPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !audio.IsSupportedExt(ext) {
		return fmt.Errorf("unsupported format %s (supported: %s)", ext, audio.SupportedExtsList())
	}
	return nil
}

// applyMetadata fills empty text layers from the track's tags.
func applyMetadata(snap *compositor.Snapshot, meta audio.Metadata) {
	if strings.TrimSpace(snap.Main.Content) == "" {
		snap.Main.Content = meta.Title
	}
	if strings.TrimSpace(snap.Author.Content) == "" {
		snap.Author.Content = meta.Artist
	}
}

func renderOptions(cfg *config.Config, assets compositor.Assets, logger *slog.Logger, rec render.Recorder) render.Options {
	vp := cfg.VideoParams()
	return render.Options{
		Width:     vp.Width,
		Height:    vp.Height,
		FrameRate: vp.FrameRate,
		Quality:   vp.Quality,
		Mux:       cfg.MuxOptions(),
		Analysis:  cfg.SamplerOptions(),
		Smoothing: cfg.Analysis.Smoothing,
		Seed:      cfg.Particles.Seed,
		Assets:    assets,
		Logger:    logger,
		LockPath:  filepath.Join(cfg.Output.StateDir, "render.lock"),
		History:   rec,
	}
}

func progressLogger(logger *slog.Logger) func(render.Progress) {
	sampler := logging.NewProgressSampler(10)
	return func(p render.Progress) {
		if p.State.Terminal() || !sampler.ShouldLog(p.Percent, p.Phase) {
			return
		}
		logger.Info("render progress",
			slog.String("job_id", p.JobID),
			slog.String("phase", p.Phase),
			slog.Int("percent", p.Percent),
			slog.Int("frame", p.Frame),
			slog.Int("total_frames", p.TotalFrames),
		)
	}
}

func runInteractive(ctx context.Context, job *render.Job, feed *ui.Feed, meta audio.Metadata) (*render.Result, error) {
	model := ui.NewRender(meta.Title, meta.Artist, job, feed)
	final, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
	if err != nil {
		job.Cancel()
		if _, waitErr := job.Wait(); waitErr != nil && !render.IsCancellation(waitErr) {
			return nil, waitErr
		}
		if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
			return nil, render.ErrCancelled
		}
		return nil, fmt.Errorf("progress screen: %w", err)
	}
	rm, ok := final.(ui.RenderModel)
	if !ok {
		job.Cancel()
		_, _ = job.Wait()
		return nil, fmt.Errorf("unexpected model type from progress screen")
	}
	return rm.Outcome()
}
