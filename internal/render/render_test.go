package render

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/olivier-w/beatframe/internal/analysis"
	"github.com/olivier-w/beatframe/internal/audio"
	"github.com/olivier-w/beatframe/internal/compositor"
	"github.com/olivier-w/beatframe/internal/encode"
	"github.com/olivier-w/beatframe/internal/particles"
)

type stubSampler struct {
	mu    sync.Mutex
	times []float64
}

func (s *stubSampler) Bins() int { return 8 }

func (s *stubSampler) Sample(_ context.Context, t float64) (analysis.Spectrum, error) {
	s.mu.Lock()
	s.times = append(s.times, t)
	s.mu.Unlock()
	return analysis.Spectrum{255, 200, 100, 50, 0, 0, 0, 0}, nil
}

type stubVideoEncoder struct {
	sink   encode.ChunkSink
	seq    uint64
	fail   error
	closed bool
}

func (e *stubVideoEncoder) Configure(_ encode.VideoParams, sink encode.ChunkSink) error {
	e.sink = sink
	return nil
}

func (e *stubVideoEncoder) Encode(ctx context.Context, _ image.Image, pts time.Duration) error {
	if e.fail != nil {
		return e.fail
	}
	c := encode.Chunk{Track: encode.Video, Seq: e.seq, PTS: pts, Key: true, Data: []byte{byte(e.seq)}}
	if err := e.sink(ctx, c); err != nil {
		return err
	}
	e.seq++
	return nil
}

func (e *stubVideoEncoder) Flush(context.Context) error { return nil }
func (e *stubVideoEncoder) Close() error                { e.closed = true; return nil }

type stubAudioEncoder struct {
	sink   encode.ChunkSink
	closed bool
}

func (e *stubAudioEncoder) Configure(_ encode.AudioParams, sink encode.ChunkSink) error {
	e.sink = sink
	return nil
}

func (e *stubAudioEncoder) Encode(context.Context, [][]float32) error { return nil }

func (e *stubAudioEncoder) Flush(ctx context.Context) error {
	return e.sink(ctx, encode.Chunk{Track: encode.Audio, Data: []byte("pcm")})
}

func (e *stubAudioEncoder) Close() error { e.closed = true; return nil }

type stubMuxer struct {
	mu        sync.Mutex
	video     int
	audio     int
	finalized int
	closed    bool
}

func (m *stubMuxer) AddVideoTrack(encode.VideoParams) error { return nil }
func (m *stubMuxer) AddAudioTrack(encode.AudioParams) error { return nil }

func (m *stubMuxer) WriteChunk(c encode.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Track == encode.Video {
		m.video++
	} else {
		m.audio++
	}
	return nil
}

func (m *stubMuxer) Finalize(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalized++
	return []byte("container"), nil
}

func (m *stubMuxer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *stubMuxer) videoChunks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.video
}

type harness struct {
	sampler  *stubSampler
	venc     *stubVideoEncoder
	aenc     *stubAudioEncoder
	mux      *stubMuxer
	progress []Progress
	opts     Options
}

// newHarness builds options rendering seconds of silence at 30 fps on a
// small surface.
func newHarness(seconds float64) *harness {
	h := &harness{
		sampler: &stubSampler{},
		venc:    &stubVideoEncoder{},
		aenc:    &stubAudioEncoder{},
		mux:     &stubMuxer{},
	}
	const rate = 1000
	h.opts = Options{
		Width:     32,
		Height:    24,
		FrameRate: 30,
		Quality:   80,
		Smoothing: 0.5,
		Seed:      1,
		Decode: func(context.Context, string) (*audio.Signal, error) {
			n := int(seconds * rate)
			return audio.NewSignal(rate, [][]float32{make([]float32, n), make([]float32, n)})
		},
		NewSampler: func(analysis.Source, analysis.SamplerOptions) (SpectrumSampler, error) {
			return h.sampler, nil
		},
		NewVideoEncoder: func() encode.VideoEncoder { return h.venc },
		NewAudioEncoder: func() encode.AudioEncoder { return h.aenc },
		NewMuxer:        func(encode.MuxOptions) (encode.Muxer, error) { return h.mux, nil },
		OnProgress:      func(p Progress) { h.progress = append(h.progress, p) },
	}
	return h
}

func testRequest() Request {
	return Request{
		ProjectID: "My Song",
		AudioPath: "song.wav",
		Snapshot: compositor.Snapshot{
			Particles: particles.Config{Enabled: true, Count: 4, Direction: particles.Top, Speed: 1, Size: 1},
		},
	}
}

func TestRenderSamplesEveryFrameTimestamp(t *testing.T) {
	h := newHarness(2.0)
	r, err := New(h.opts)
	if err != nil {
		t.Fatal(err)
	}

	res, err := r.Render(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if len(h.sampler.times) != 61 {
		t.Fatalf("sampler called %d times, want 61", len(h.sampler.times))
	}
	for i := 1; i < len(h.sampler.times); i++ {
		if h.sampler.times[i] <= h.sampler.times[i-1] {
			t.Fatalf("timestamps not increasing at %d: %v", i, h.sampler.times[i-1:i+1])
		}
	}
	if h.sampler.times[60] != 2.0 {
		t.Fatalf("last timestamp = %v, want 2", h.sampler.times[60])
	}
	if res.Frames != 61 || string(res.Container) != "container" || res.Name != "My Song.mp4" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if h.mux.video != 61 || h.mux.audio != 1 || h.mux.finalized != 1 {
		t.Fatalf("muxer saw video=%d audio=%d finalize=%d", h.mux.video, h.mux.audio, h.mux.finalized)
	}
	if !h.mux.closed || !h.venc.closed || !h.aenc.closed {
		t.Fatal("expected all collaborators closed")
	}
}

func TestRenderProgressIsMonotonic(t *testing.T) {
	h := newHarness(1.0)
	r, err := New(h.opts)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Render(context.Background(), testRequest()); err != nil {
		t.Fatal(err)
	}

	last := -1
	var phases []string
	for _, p := range h.progress {
		if p.Percent < last {
			t.Fatalf("progress went backwards: %d after %d", p.Percent, last)
		}
		last = p.Percent
		if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
			phases = append(phases, p.Phase)
		}
	}
	want := []string{"Initializing", "Encoding audio", "Rendering video frames", "Finalizing", "Packing", ""}
	if len(phases) != len(want) {
		t.Fatalf("phases = %q, want %q", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("phases = %q, want %q", phases, want)
		}
	}
	final := h.progress[len(h.progress)-1]
	if final.State != Done || final.Percent != 100 {
		t.Fatalf("final progress = %+v", final)
	}
}

func TestRenderCancelStopsBeforeNextFrame(t *testing.T) {
	h := newHarness(2.0)
	h.opts.OnFrame = func(job *Job, _ *image.RGBA, index int) {
		if index == 9 {
			job.Cancel()
		}
	}
	r, err := New(h.opts)
	if err != nil {
		t.Fatal(err)
	}

	res, err := r.Render(context.Background(), testRequest())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if res != nil {
		t.Fatalf("expected no result, got %+v", res)
	}
	if got := h.mux.videoChunks(); got > 10 {
		t.Fatalf("muxer committed %d video chunks, want at most 10", got)
	}
	if h.mux.finalized != 0 {
		t.Fatal("Finalize must not run after cancellation")
	}
	if !h.mux.closed {
		t.Fatal("expected muxer closed")
	}
	if TerminalState(err) != Cancelled {
		t.Fatalf("TerminalState = %v", TerminalState(err))
	}
}

func TestRenderContextCancelledBeforeStart(t *testing.T) {
	h := newHarness(1.0)
	h.opts.Decode = func(ctx context.Context, _ string) (*audio.Signal, error) {
		return nil, ctx.Err()
	}
	r, err := New(h.opts)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Render(ctx, testRequest()); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestRenderClassifiesFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
		want  error
	}{
		{
			name: "decode",
			setup: func(h *harness) {
				h.opts.Decode = func(context.Context, string) (*audio.Signal, error) {
					return nil, audio.ErrUnsupported
				}
			},
			want: ErrDecode,
		},
		{
			name: "muxer",
			setup: func(h *harness) {
				h.opts.NewMuxer = func(encode.MuxOptions) (encode.Muxer, error) {
					return nil, errors.New("no muxer")
				}
			},
			want: ErrConfiguration,
		},
		{
			name:  "encode",
			setup: func(h *harness) { h.venc.fail = errors.New("encoder exploded") },
			want:  ErrEncodeRuntime,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(0.5)
			tt.setup(h)
			r, err := New(h.opts)
			if err != nil {
				t.Fatal(err)
			}
			_, err = r.Render(context.Background(), testRequest())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if TerminalState(err) != Failed {
				t.Fatalf("TerminalState = %v, want failed", TerminalState(err))
			}
			if h.mux.finalized != 0 {
				t.Fatal("Finalize must not run after a failure")
			}
		})
	}
}

func TestStartRejectsSecondJob(t *testing.T) {
	h := newHarness(0.2)
	release := make(chan struct{})
	entered := make(chan struct{})
	decode := h.opts.Decode
	h.opts.Decode = func(ctx context.Context, path string) (*audio.Signal, error) {
		close(entered)
		<-release
		return decode(ctx, path)
	}
	r, err := New(h.opts)
	if err != nil {
		t.Fatal(err)
	}

	job, err := r.Start(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}
	<-entered
	if _, err := r.Start(context.Background(), testRequest()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if r.Active() != job {
		t.Fatal("Active() should return the running job")
	}
	close(release)
	if _, err := job.Wait(); err != nil {
		t.Fatal(err)
	}
	if r.Active() != nil {
		t.Fatal("Active() should be nil after the job ends")
	}
}

func TestStartHonorsCrossProcessLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "render.lock")

	first := newHarness(0.2)
	release := make(chan struct{})
	entered := make(chan struct{})
	decode := first.opts.Decode
	first.opts.Decode = func(ctx context.Context, path string) (*audio.Signal, error) {
		close(entered)
		<-release
		return decode(ctx, path)
	}
	first.opts.LockPath = lockPath
	r1, err := New(first.opts)
	if err != nil {
		t.Fatal(err)
	}
	second := newHarness(0.2)
	second.opts.LockPath = lockPath
	r2, err := New(second.opts)
	if err != nil {
		t.Fatal(err)
	}

	job, err := r1.Start(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}
	<-entered
	if _, err := r2.Start(context.Background(), testRequest()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy from second renderer, got %v", err)
	}
	close(release)
	if _, err := job.Wait(); err != nil {
		t.Fatal(err)
	}
	if _, err := r2.Render(context.Background(), testRequest()); err != nil {
		t.Fatalf("second renderer should run once the lock is free: %v", err)
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	h := newHarness(1)
	h.opts.Width = 33
	if _, err := New(h.opts); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for odd width, got %v", err)
	}
	h = newHarness(1)
	h.opts.Smoothing = 1
	if _, err := New(h.opts); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for smoothing, got %v", err)
	}
}

func TestStartRequiresAudio(t *testing.T) {
	r, err := New(newHarness(1).opts)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Start(context.Background(), Request{ProjectID: "x"}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

type recordingHistory struct {
	begun    []JobRecord
	outcomes []Outcome
}

func (r *recordingHistory) Begin(_ context.Context, rec JobRecord) error {
	r.begun = append(r.begun, rec)
	return nil
}

func (r *recordingHistory) Finish(_ context.Context, _ string, out Outcome) error {
	r.outcomes = append(r.outcomes, out)
	return nil
}

func TestRenderRecordsHistory(t *testing.T) {
	h := newHarness(0.5)
	hist := &recordingHistory{}
	h.opts.History = hist
	r, err := New(h.opts)
	if err != nil {
		t.Fatal(err)
	}
	res, err := r.Render(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}
	if len(hist.begun) != 1 || hist.begun[0].ID != res.JobID || hist.begun[0].Source != "song.wav" {
		t.Fatalf("begin records = %+v", hist.begun)
	}
	if len(hist.outcomes) != 1 || hist.outcomes[0].State != Done || hist.outcomes[0].Frames != 16 || hist.outcomes[0].Bytes != len("container") {
		t.Fatalf("outcomes = %+v", hist.outcomes)
	}
}

type composedFrame struct {
	speed float64
	count int
	ids   []uint64
}

// stubCompose records the snapshot and particle identities of every frame.
func stubCompose(t *testing.T) *[]composedFrame {
	t.Helper()
	var frames []composedFrame
	orig := composeFrame
	composeFrame = func(_ *compositor.Compositor, _ *image.RGBA, snap compositor.Snapshot, _ []float64, _ analysis.BandAverages, field []particles.Particle) error {
		ids := make([]uint64, len(field))
		for i, p := range field {
			ids[i] = p.ID
		}
		frames = append(frames, composedFrame{speed: snap.Particles.Speed, count: snap.Particles.Count, ids: ids})
		return nil
	}
	t.Cleanup(func() { composeFrame = orig })
	return &frames
}

func sameIDs(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLiveSnapshotAppliesAtFrameBoundary(t *testing.T) {
	frames := stubCompose(t)
	h := newHarness(1.0)

	base := testRequest().Snapshot
	faster := base
	faster.Particles.Speed = 2
	reshaped := faster
	reshaped.Particles.Count = 6
	reshaped.Particles.Direction = particles.Left

	current := base
	h.opts.OnFrame = func(_ *Job, _ *image.RGBA, index int) {
		switch index {
		case 9:
			current = faster
		case 19:
			current = reshaped
		}
	}
	r, err := New(h.opts)
	if err != nil {
		t.Fatal(err)
	}
	req := testRequest()
	req.Live = func() compositor.Snapshot { return current }
	if _, err := r.Render(context.Background(), req); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	got := *frames
	if len(got) != 31 {
		t.Fatalf("composed %d frames, want 31", len(got))
	}
	for i, f := range got {
		wantSpeed := 1.0
		if i >= 10 {
			wantSpeed = 2
		}
		if f.speed != wantSpeed {
			t.Fatalf("frame %d composed with speed %v, want %v", i, f.speed, wantSpeed)
		}
	}
	for i := 1; i < 20; i++ {
		if !sameIDs(got[i].ids, got[0].ids) {
			t.Fatalf("frame %d particle IDs %v changed from %v on a speed-only edit", i, got[i].ids, got[0].ids)
		}
	}
	if got[19].count != 4 || got[20].count != 6 || len(got[20].ids) != 6 {
		t.Fatalf("count change applied at the wrong frame: 19=%d 20=%d", got[19].count, got[20].count)
	}
	old := map[uint64]bool{}
	for _, id := range got[19].ids {
		old[id] = true
	}
	for _, id := range got[20].ids {
		if old[id] {
			t.Fatalf("particle %d survived a count/direction change", id)
		}
	}
	for i := 21; i < len(got); i++ {
		if !sameIDs(got[i].ids, got[20].ids) {
			t.Fatalf("frame %d reseeded again without a config change", i)
		}
	}
}

func TestTerminalProgressDeliveredBeforeRelease(t *testing.T) {
	h := newHarness(0.2)
	var r *Renderer
	var busyAtDone error
	h.opts.OnProgress = func(p Progress) {
		if p.State.Terminal() {
			_, busyAtDone = r.Start(context.Background(), testRequest())
		}
	}
	var err error
	r, err = New(h.opts)
	if err != nil {
		t.Fatal(err)
	}
	job, err := r.Start(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := job.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if !errors.Is(busyAtDone, ErrBusy) {
		t.Fatalf("Start during terminal notification = %v, want ErrBusy", busyAtDone)
	}
	if r.Active() != nil {
		t.Fatal("renderer should be idle once Done closes")
	}
	next, err := r.Start(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Start after Done = %v", err)
	}
	if _, err := next.Wait(); err != nil {
		t.Fatal(err)
	}
}
