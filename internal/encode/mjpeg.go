package encode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"time"
)

// MJPEGEncoder emits every frame as an independent JPEG key frame.
type MJPEGEncoder struct {
	params VideoParams
	sink   ChunkSink
	seq    uint64
	buf    bytes.Buffer
	closed bool
}

func NewMJPEGEncoder() *MJPEGEncoder {
	return &MJPEGEncoder{}
}

func (e *MJPEGEncoder) Configure(p VideoParams, sink ChunkSink) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if sink == nil {
		return fmt.Errorf("%w: nil chunk sink", ErrInvalidParams)
	}
	e.params = p
	e.sink = sink
	e.seq = 0
	return nil
}

func (e *MJPEGEncoder) Encode(ctx context.Context, frame image.Image, pts time.Duration) error {
	if e.sink == nil {
		return ErrNotConfigured
	}
	if e.closed {
		return fmt.Errorf("mjpeg encoder is closed")
	}
	b := frame.Bounds()
	if b.Dx() != e.params.Width || b.Dy() != e.params.Height {
		return fmt.Errorf("frame is %dx%d, encoder configured for %dx%d", b.Dx(), b.Dy(), e.params.Width, e.params.Height)
	}

	e.buf.Reset()
	if err := jpeg.Encode(&e.buf, frame, &jpeg.Options{Quality: e.params.Quality}); err != nil {
		return fmt.Errorf("encoding frame %d: %w", e.seq, err)
	}
	c := Chunk{
		Track:    Video,
		Seq:      e.seq,
		PTS:      pts,
		Duration: e.params.FrameDuration(),
		Key:      true,
		Data:     bytes.Clone(e.buf.Bytes()),
	}
	if err := e.sink(ctx, c); err != nil {
		return err
	}
	e.seq++
	return nil
}

// Flush is a no-op: intra-only frames are never held back.
func (e *MJPEGEncoder) Flush(ctx context.Context) error {
	if e.sink == nil {
		return ErrNotConfigured
	}
	return ctx.Err()
}

func (e *MJPEGEncoder) Close() error {
	e.closed = true
	return nil
}
