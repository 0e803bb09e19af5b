// Package render drives one audio file through analysis, composition and
// encoding into a finished container.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/olivier-w/beatframe/internal/analysis"
	"github.com/olivier-w/beatframe/internal/audio"
	"github.com/olivier-w/beatframe/internal/compositor"
	"github.com/olivier-w/beatframe/internal/encode"
	"github.com/olivier-w/beatframe/internal/particles"
)

// SpectrumSampler produces byte spectra at timestamps in seconds.
type SpectrumSampler interface {
	Bins() int
	Sample(ctx context.Context, t float64) (analysis.Spectrum, error)
}

// composeFrame draws one frame; tests replace it to observe what each frame
// was composed from.
var composeFrame = func(c *compositor.Compositor, dst *image.RGBA, snap compositor.Snapshot, spectrum []float64, bands analysis.BandAverages, field []particles.Particle) error {
	return c.Compose(dst, snap, spectrum, bands, field)
}

// Options configures a Renderer. Zero-valued factories fall back to the
// built-in decoders, encoders and ffmpeg muxer.
type Options struct {
	Width     int
	Height    int
	FrameRate int
	Quality   int
	Mux       encode.MuxOptions
	Analysis  analysis.SamplerOptions
	Smoothing float64
	Seed      uint64
	Assets    compositor.Assets

	Logger   *slog.Logger
	LockPath string
	History  Recorder

	Decode          func(ctx context.Context, path string) (*audio.Signal, error)
	DecodeBytes     func(ctx context.Context, name string, data []byte) (*audio.Signal, error)
	NewSampler      func(src analysis.Source, opts analysis.SamplerOptions) (SpectrumSampler, error)
	NewVideoEncoder func() encode.VideoEncoder
	NewAudioEncoder func() encode.AudioEncoder
	NewMuxer        func(opts encode.MuxOptions) (encode.Muxer, error)

	// OnProgress is called from the render goroutine on every progress
	// change.
	OnProgress func(Progress)
	// OnFrame sees each composed frame. The image is reused once the
	// callback returns.
	OnFrame func(job *Job, frame *image.RGBA, index int)
}

// Request describes one render.
type Request struct {
	ProjectID string
	// AudioPath is read from disk when AudioData is empty.
	AudioPath string
	// AudioName carries the extension used to pick a decoder for AudioData.
	AudioName string
	AudioData []byte
	Snapshot  compositor.Snapshot
	// Live, when set, is read once per frame so edits made during a render
	// take effect at the next frame boundary.
	Live func() compositor.Snapshot
}

func (r Request) snapshot() compositor.Snapshot {
	if r.Live != nil {
		return r.Live()
	}
	return r.Snapshot
}

func (r Request) source() string {
	if len(r.AudioData) > 0 {
		return r.AudioName
	}
	return r.AudioPath
}

// Result is a finished container.
type Result struct {
	JobID     string
	Name      string
	Format    encode.Format
	Container []byte
	Frames    int
	Duration  time.Duration
}

// Renderer runs at most one job at a time.
type Renderer struct {
	opts   Options
	logger *slog.Logger
	active atomic.Pointer[Job]
}

// New validates opts and fills in default collaborators.
func New(opts Options) (*Renderer, error) {
	if opts.Mux.Format == "" {
		opts.Mux = encode.DefaultMuxOptions()
	}
	if opts.Analysis.WindowSize == 0 {
		opts.Analysis = analysis.DefaultSamplerOptions()
	}
	vp := encode.VideoParams{Width: opts.Width, Height: opts.Height, FrameRate: opts.FrameRate, Quality: opts.Quality}
	if err := vp.Validate(); err != nil {
		return nil, Wrap(ErrConfiguration, Idle, "video parameters", err)
	}
	if err := opts.Analysis.Validate(); err != nil {
		return nil, Wrap(ErrConfiguration, Idle, "analysis parameters", err)
	}
	if opts.Smoothing < 0 || opts.Smoothing >= 1 {
		return nil, Wrap(ErrConfiguration, Idle, "analysis parameters", fmt.Errorf("smoothing %v outside [0, 1)", opts.Smoothing))
	}
	if _, err := encode.ParseFormat(string(opts.Mux.Format)); err != nil {
		return nil, Wrap(ErrConfiguration, Idle, "output format", err)
	}

	if opts.Decode == nil {
		opts.Decode = audio.Decode
	}
	if opts.DecodeBytes == nil {
		opts.DecodeBytes = audio.DecodeBytes
	}
	if opts.NewSampler == nil {
		opts.NewSampler = func(src analysis.Source, o analysis.SamplerOptions) (SpectrumSampler, error) {
			return analysis.NewSampler(src, o)
		}
	}
	if opts.NewVideoEncoder == nil {
		opts.NewVideoEncoder = func() encode.VideoEncoder { return encode.NewMJPEGEncoder() }
	}
	if opts.NewAudioEncoder == nil {
		opts.NewAudioEncoder = func() encode.AudioEncoder { return encode.NewWAVEncoder() }
	}
	if opts.NewMuxer == nil {
		opts.NewMuxer = func(o encode.MuxOptions) (encode.Muxer, error) { return encode.NewFFmpegMuxer(o) }
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Renderer{opts: opts, logger: logger}, nil
}

// Active returns the running job, if any.
func (r *Renderer) Active() *Job {
	return r.active.Load()
}

// Start launches a job in the background. It returns ErrBusy while another
// job is running in this process or, when LockPath is set, in another one.
// The terminal progress update is delivered while the job still holds the
// renderer; the renderer is released before Done closes.
func (r *Renderer) Start(ctx context.Context, req Request) (*Job, error) {
	if strings.TrimSpace(req.AudioPath) == "" && len(req.AudioData) == 0 {
		return nil, Wrap(ErrConfiguration, Idle, "request", errors.New("no audio input"))
	}

	jobCtx, cancel := context.WithCancel(ctx)
	job := newJob(cancel, r.opts.OnProgress)
	if !r.active.CompareAndSwap(nil, job) {
		cancel()
		return nil, ErrBusy
	}

	var lock *flock.Flock
	if r.opts.LockPath != "" {
		lock = flock.New(r.opts.LockPath)
		ok, err := lock.TryLock()
		if err != nil || !ok {
			r.active.CompareAndSwap(job, nil)
			cancel()
			if err != nil {
				return nil, Wrap(ErrConfiguration, Idle, "acquire render lock", err)
			}
			return nil, ErrBusy
		}
	}

	go func() {
		res, err := r.run(jobCtx, job, req)
		if lock != nil {
			if uerr := lock.Unlock(); uerr != nil {
				r.logger.Warn("release render lock failed", "error", uerr)
			}
		}
		job.settle(res, err)
		r.active.CompareAndSwap(job, nil)
		cancel()
		close(job.done)
	}()
	return job, nil
}

// Render runs a job to completion.
func (r *Renderer) Render(ctx context.Context, req Request) (*Result, error) {
	job, err := r.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	return job.Wait()
}

func (r *Renderer) run(ctx context.Context, job *Job, req Request) (res *Result, err error) {
	logger := r.logger.With("job_id", job.ID(), "project", req.ProjectID)
	started := time.Now()
	frames := 0
	name := OutputName(req.ProjectID, r.opts.Mux.Format)

	r.recordBegin(ctx, logger, JobRecord{
		ID:        job.ID(),
		ProjectID: req.ProjectID,
		Source:    req.source(),
		Format:    r.opts.Mux.Format,
		Width:     r.opts.Width,
		Height:    r.opts.Height,
		FrameRate: r.opts.FrameRate,
		StartedAt: started,
	})
	defer func() {
		out := Outcome{State: TerminalState(err), Frames: frames, Err: err, FinishedAt: time.Now()}
		if res != nil {
			out.Bytes = len(res.Container)
		}
		r.recordFinish(logger, job.ID(), out)
		switch out.State {
		case Done:
			logger.Info("render finished", "frames", frames, "bytes", out.Bytes, "elapsed", time.Since(started).Round(time.Millisecond))
		case Cancelled:
			logger.Info("render cancelled", "frames", frames)
		default:
			logger.Error("render failed", "frames", frames, "error", err)
		}
	}()

	job.update(Initializing, "", 0, 0, 0)
	logger.Info("render started", "source", req.source(), "format", r.opts.Mux.Format)

	var sig *audio.Signal
	if len(req.AudioData) > 0 {
		sig, err = r.opts.DecodeBytes(ctx, req.AudioName, req.AudioData)
	} else {
		sig, err = r.opts.Decode(ctx, req.AudioPath)
	}
	if err != nil {
		return nil, job.classify(ctx, ErrDecode, Initializing, "decode audio", err)
	}
	logger.Debug("audio decoded", "sample_rate", sig.SampleRate(), "channels", sig.ChannelCount(), "duration", sig.Duration())

	comp, err := compositor.New(r.opts.Width, r.opts.Height, r.opts.Assets)
	if err != nil {
		return nil, job.classify(ctx, ErrConfiguration, Initializing, "create compositor", err)
	}
	sampler, err := r.opts.NewSampler(sig, r.opts.Analysis)
	if err != nil {
		return nil, job.classify(ctx, ErrConfiguration, Initializing, "create sampler", err)
	}
	if l, ok := sampler.(interface{ SetLogger(*slog.Logger) }); ok {
		l.SetLogger(logger)
	}

	mux, err := r.opts.NewMuxer(r.opts.Mux)
	if err != nil {
		return nil, job.classify(ctx, ErrConfiguration, Initializing, "create muxer", err)
	}
	defer closeLogged(logger, "muxer", mux.Close)

	vp := encode.VideoParams{Width: r.opts.Width, Height: r.opts.Height, FrameRate: r.opts.FrameRate, Quality: r.opts.Quality}
	ap := encode.AudioParams{SampleRate: sig.SampleRate(), Channels: sig.ChannelCount()}
	if err := mux.AddVideoTrack(vp); err != nil {
		return nil, job.classify(ctx, ErrConfiguration, Initializing, "add video track", err)
	}
	if err := mux.AddAudioTrack(ap); err != nil {
		return nil, job.classify(ctx, ErrConfiguration, Initializing, "add audio track", err)
	}

	vq := encode.NewTrackQueue(encode.Video, mux.WriteChunk)
	defer vq.Close()
	aq := encode.NewTrackQueue(encode.Audio, mux.WriteChunk)
	defer aq.Close()

	venc := r.opts.NewVideoEncoder()
	defer closeLogged(logger, "video encoder", venc.Close)
	if err := venc.Configure(vp, vq.Push); err != nil {
		return nil, job.classify(ctx, ErrConfiguration, Initializing, "configure video encoder", err)
	}
	aenc := r.opts.NewAudioEncoder()
	defer closeLogged(logger, "audio encoder", aenc.Close)
	if err := aenc.Configure(ap, aq.Push); err != nil {
		return nil, job.classify(ctx, ErrConfiguration, Initializing, "configure audio encoder", err)
	}

	job.update(EncodingAudio, "", 0, 0, 0)
	if job.stopped(ctx) {
		return nil, Wrap(ErrCancelled, EncodingAudio, "", nil)
	}
	if err := aenc.Encode(ctx, sig.Planar()); err != nil {
		return nil, job.classify(ctx, ErrEncodeRuntime, EncodingAudio, "encode audio", err)
	}
	if err := aenc.Flush(ctx); err != nil {
		return nil, job.classify(ctx, ErrEncodeRuntime, EncodingAudio, "flush audio", err)
	}
	if err := aq.Drain(); err != nil {
		return nil, job.classify(ctx, ErrEncodeRuntime, EncodingAudio, "write audio", err)
	}

	fps := r.opts.FrameRate
	total := int(math.Floor(sig.Seconds() * float64(fps)))
	smoother := analysis.NewSmoother(sampler.Bins(), r.opts.Smoothing)
	snap := req.snapshot()
	field := particles.New(snap.Particles, r.opts.Width, r.opts.Height, r.opts.Seed)
	frame := comp.NewFrame()

	job.update(EncodingVideoFrames, "", 0, 0, total)
	for i := 0; i <= total; i++ {
		if job.stopped(ctx) {
			return nil, Wrap(ErrCancelled, EncodingVideoFrames, fmt.Sprintf("before frame %d", i), nil)
		}
		t := float64(i) / float64(fps)
		raw, err := sampler.Sample(ctx, t)
		if err != nil {
			return nil, job.classify(ctx, ErrEncodeRuntime, EncodingVideoFrames, "sample spectrum", err)
		}
		if i > 0 {
			snap = req.snapshot()
		}
		if field.Reconfigure(snap.Particles) {
			logger.Debug("particle field reseeded", "frame", i, "count", snap.Particles.Count)
		}
		smoothed := smoother.Apply(raw)
		bands := analysis.Extract(smoothed)
		field.Update(bands.Bass)

		if err := composeFrame(comp, frame, snap, smoothed, bands, field.Particles()); err != nil {
			return nil, job.classify(ctx, ErrEncodeRuntime, EncodingVideoFrames, "compose frame", err)
		}
		pts := time.Duration(i) * time.Second / time.Duration(fps)
		if err := venc.Encode(ctx, frame, pts); err != nil {
			return nil, job.classify(ctx, ErrEncodeRuntime, EncodingVideoFrames, fmt.Sprintf("encode frame %d", i), err)
		}
		frames = i + 1
		if r.opts.OnFrame != nil {
			r.opts.OnFrame(job, frame, i)
		}
		job.update(EncodingVideoFrames, "", framePercent(i, total), i, total)
	}

	job.update(Finalizing, "", 100, total, total)
	if err := venc.Flush(ctx); err != nil {
		return nil, job.classify(ctx, ErrEncodeRuntime, Finalizing, "flush video", err)
	}
	if err := vq.Drain(); err != nil {
		return nil, job.classify(ctx, ErrEncodeRuntime, Finalizing, "write video", err)
	}
	if job.stopped(ctx) {
		return nil, Wrap(ErrCancelled, Finalizing, "", nil)
	}

	job.update(Finalizing, PackingLabel, 100, total, total)
	data, err := mux.Finalize(ctx)
	if err != nil {
		return nil, job.classify(ctx, ErrEncodeRuntime, Finalizing, "finalize container", err)
	}

	return &Result{
		JobID:     job.ID(),
		Name:      name,
		Format:    r.opts.Mux.Format,
		Container: data,
		Frames:    frames,
		Duration:  sig.Duration(),
	}, nil
}

// framePercent is round(i/total*100), or 100 for a single-frame render.
func framePercent(i, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(i) / float64(total) * 100))
}

func (r *Renderer) recordBegin(ctx context.Context, logger *slog.Logger, rec JobRecord) {
	if r.opts.History == nil {
		return
	}
	if err := r.opts.History.Begin(ctx, rec); err != nil {
		logger.Warn("record job start failed", "error", err)
	}
}

func (r *Renderer) recordFinish(logger *slog.Logger, id string, out Outcome) {
	if r.opts.History == nil {
		return
	}
	// The job context may already be cancelled here.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.opts.History.Finish(ctx, id, out); err != nil {
		logger.Warn("record job outcome failed", "error", err)
	}
}

func closeLogged(logger *slog.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Warn("close failed", "component", what, "error", err)
	}
}
