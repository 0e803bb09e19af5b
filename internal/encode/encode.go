// Package encode turns rendered frames and decoded audio into encoded
// chunks and muxes them into a finished container.
package encode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"
)

// ErrInvalidParams marks parameters an encoder or muxer refuses to accept.
var ErrInvalidParams = errors.New("invalid encoder parameters")

// ErrNotConfigured is returned when Encode is called before Configure.
var ErrNotConfigured = errors.New("encoder not configured")

// Track identifies the stream a chunk belongs to.
type Track int

const (
	Video Track = iota
	Audio
)

func (t Track) String() string {
	switch t {
	case Video:
		return "video"
	case Audio:
		return "audio"
	default:
		return fmt.Sprintf("track(%d)", int(t))
	}
}

// Chunk is one encoded unit. Seq increases by one per track, starting at 0.
type Chunk struct {
	Track    Track
	Seq      uint64
	PTS      time.Duration
	Duration time.Duration
	Key      bool
	Data     []byte
}

// ChunkSink receives chunks as an encoder produces them. It returns once the
// chunk has been handed on and may block for backpressure.
type ChunkSink func(ctx context.Context, c Chunk) error

type VideoParams struct {
	Width     int
	Height    int
	FrameRate int
	Quality   int
}

func (p VideoParams) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: frame size %dx%d", ErrInvalidParams, p.Width, p.Height)
	}
	if p.Width%2 != 0 || p.Height%2 != 0 {
		return fmt.Errorf("%w: frame size %dx%d must be even", ErrInvalidParams, p.Width, p.Height)
	}
	if p.FrameRate <= 0 || p.FrameRate > 240 {
		return fmt.Errorf("%w: frame rate %d", ErrInvalidParams, p.FrameRate)
	}
	if p.Quality < 1 || p.Quality > 100 {
		return fmt.Errorf("%w: quality %d outside [1, 100]", ErrInvalidParams, p.Quality)
	}
	return nil
}

// FrameDuration is the display time of one frame.
func (p VideoParams) FrameDuration() time.Duration {
	return time.Second / time.Duration(p.FrameRate)
}

type AudioParams struct {
	SampleRate int
	Channels   int
}

func (p AudioParams) Validate() error {
	if p.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidParams, p.SampleRate)
	}
	if p.Channels <= 0 || p.Channels > 8 {
		return fmt.Errorf("%w: channel count %d", ErrInvalidParams, p.Channels)
	}
	return nil
}

// VideoEncoder compresses frames. Chunks reach the sink in PTS order.
type VideoEncoder interface {
	Configure(p VideoParams, sink ChunkSink) error
	Encode(ctx context.Context, frame image.Image, pts time.Duration) error
	Flush(ctx context.Context) error
	Close() error
}

// AudioEncoder compresses planar samples.
type AudioEncoder interface {
	Configure(p AudioParams, sink ChunkSink) error
	Encode(ctx context.Context, planar [][]float32) error
	Flush(ctx context.Context) error
	Close() error
}

// Muxer interleaves per-track chunks into one container buffer.
type Muxer interface {
	AddVideoTrack(p VideoParams) error
	AddAudioTrack(p AudioParams) error
	WriteChunk(c Chunk) error
	Finalize(ctx context.Context) ([]byte, error)
	Close() error
}

// Format is an output container.
type Format string

const (
	MP4 Format = "mp4"
	MKV Format = "mkv"
)

// ParseFormat validates a container name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case MP4, MKV:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported container format %q (want mp4 or mkv)", s)
	}
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string { return "." + string(f) }
