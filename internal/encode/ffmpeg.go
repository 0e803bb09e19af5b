package encode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	ffmpegLookPath = exec.LookPath
	ffmpegRun      = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Stdin = nil
		return cmd.CombinedOutput()
	}
	mkdirTemp = os.MkdirTemp
	removeAll = os.RemoveAll
	sleep     = time.Sleep
)

// ErrFFmpegNotFound is returned by Finalize when no ffmpeg binary is on PATH.
var ErrFFmpegNotFound = errors.New("ffmpeg not found (required to write the output container)")

// MuxOptions controls the container FFmpegMuxer produces.
type MuxOptions struct {
	Format       Format
	VideoCodec   string
	AudioCodec   string
	CRF          int
	AudioBitrate string
	// TempDir is where track spools are created; empty uses the system default.
	TempDir string
}

// DefaultMuxOptions returns H.264/AAC in MP4.
func DefaultMuxOptions() MuxOptions {
	return MuxOptions{
		Format:       MP4,
		VideoCodec:   "libx264",
		AudioCodec:   "aac",
		CRF:          20,
		AudioBitrate: "192k",
	}
}

// FFmpegMuxer spools each track to a temp file and runs ffmpeg once on
// Finalize to produce the container. MP4 output is transcoded; MKV output
// stream-copies the spooled tracks.
type FFmpegMuxer struct {
	opts MuxOptions

	mu       sync.Mutex
	dir      string
	video    *os.File
	audio    *os.File
	vparams  VideoParams
	nextSeq  map[Track]uint64
	finished bool
}

func NewFFmpegMuxer(opts MuxOptions) (*FFmpegMuxer, error) {
	if _, err := ParseFormat(string(opts.Format)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if opts.Format == MP4 && (opts.CRF < 0 || opts.CRF > 51) {
		return nil, fmt.Errorf("%w: crf %d outside [0, 51]", ErrInvalidParams, opts.CRF)
	}
	return &FFmpegMuxer{opts: opts, nextSeq: make(map[Track]uint64)}, nil
}

func (m *FFmpegMuxer) ensureDir() error {
	if m.dir != "" {
		return nil
	}
	dir, err := mkdirTemp(m.opts.TempDir, "beatframe-mux-*")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	m.dir = dir
	return nil
}

func (m *FFmpegMuxer) openSpool(name string) (*os.File, error) {
	if err := m.ensureDir(); err != nil {
		return nil, err
	}
	f, err := os.Create(filepath.Join(m.dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating %s spool: %w", name, err)
	}
	return f, nil
}

func (m *FFmpegMuxer) AddVideoTrack(p VideoParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.video != nil {
		return errors.New("video track already added")
	}
	f, err := m.openSpool("video.mjpeg")
	if err != nil {
		return err
	}
	m.video = f
	m.vparams = p
	return nil
}

func (m *FFmpegMuxer) AddAudioTrack(p AudioParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.audio != nil {
		return errors.New("audio track already added")
	}
	f, err := m.openSpool("audio.wav")
	if err != nil {
		return err
	}
	m.audio = f
	return nil
}

// WriteChunk appends c to its track spool. Chunks must arrive in sequence
// order per track.
func (m *FFmpegMuxer) WriteChunk(c Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished {
		return errors.New("muxer already finalized")
	}

	var f *os.File
	switch c.Track {
	case Video:
		f = m.video
	case Audio:
		f = m.audio
	}
	if f == nil {
		return fmt.Errorf("no %s track added", c.Track)
	}
	if want := m.nextSeq[c.Track]; c.Seq != want {
		return fmt.Errorf("%s chunk out of order: got seq %d, want %d", c.Track, c.Seq, want)
	}
	if _, err := f.Write(c.Data); err != nil {
		return fmt.Errorf("spooling %s chunk %d: %w", c.Track, c.Seq, err)
	}
	m.nextSeq[c.Track]++
	return nil
}

// Finalize runs ffmpeg over the spools and returns the container bytes.
func (m *FFmpegMuxer) Finalize(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished {
		return nil, errors.New("muxer already finalized")
	}
	m.finished = true
	if m.video == nil {
		return nil, errors.New("no video track added")
	}
	if m.nextSeq[Video] == 0 {
		return nil, errors.New("no video frames written")
	}
	if err := m.closeSpools(); err != nil {
		return nil, err
	}

	ffmpeg, err := ffmpegLookPath("ffmpeg")
	if err != nil {
		return nil, ErrFFmpegNotFound
	}

	outPath := filepath.Join(m.dir, "out"+m.opts.Format.Ext())
	output, err := ffmpegRun(ctx, ffmpeg, m.args(outPath)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		msg := strings.TrimSpace(string(output))
		if msg == "" {
			return nil, fmt.Errorf("ffmpeg failed to mux output: %w", err)
		}
		return nil, fmt.Errorf("ffmpeg failed to mux output: %w\n%s", err, msg)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("reading muxed output: %w", err)
	}
	return data, nil
}

func (m *FFmpegMuxer) args(outPath string) []string {
	args := []string{
		"-y", "-v", "error",
		"-f", "mjpeg",
		"-framerate", strconv.Itoa(m.vparams.FrameRate),
		"-i", filepath.Join(m.dir, "video.mjpeg"),
	}
	hasAudio := m.audio != nil && m.nextSeq[Audio] > 0
	if hasAudio {
		args = append(args, "-i", filepath.Join(m.dir, "audio.wav"))
	}
	args = append(args, "-map", "0:v:0")
	if hasAudio {
		args = append(args, "-map", "1:a:0")
	}

	switch m.opts.Format {
	case MKV:
		args = append(args, "-c:v", "copy")
		if hasAudio {
			args = append(args, "-c:a", "copy")
		}
	default:
		args = append(args,
			"-c:v", m.opts.VideoCodec,
			"-pix_fmt", "yuv420p",
			"-crf", strconv.Itoa(m.opts.CRF),
		)
		if hasAudio {
			args = append(args, "-c:a", m.opts.AudioCodec, "-b:a", m.opts.AudioBitrate)
		}
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, outPath)
}

func (m *FFmpegMuxer) closeSpools() error {
	var errs []error
	for _, f := range []*os.File{m.video, m.audio} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases the spools and removes the temp dir. It is safe to call
// more than once and after Finalize.
func (m *FFmpegMuxer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = true
	m.closeSpools()
	if m.dir != "" {
		cleanupTempDirWithRetry(m.dir)
		m.dir = ""
	}
	return nil
}

func cleanupTempDirWithRetry(dir string) {
	for attempt := 0; attempt < 5; attempt++ {
		if err := removeAll(dir); err == nil || attempt == 4 {
			return
		}
		sleep(75 * time.Millisecond)
	}
}
