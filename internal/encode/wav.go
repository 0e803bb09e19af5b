package encode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavBitDepth = 16

// WAVEncoder packs planar float samples as 16-bit PCM WAV. The whole file
// is emitted as a single chunk on Flush.
type WAVEncoder struct {
	params  AudioParams
	sink    ChunkSink
	out     *seekBuffer
	enc     *wav.Encoder
	frames  int
	flushed bool
}

func NewWAVEncoder() *WAVEncoder {
	return &WAVEncoder{}
}

func (e *WAVEncoder) Configure(p AudioParams, sink ChunkSink) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if sink == nil {
		return fmt.Errorf("%w: nil chunk sink", ErrInvalidParams)
	}
	e.params = p
	e.sink = sink
	e.out = &seekBuffer{}
	e.enc = wav.NewEncoder(e.out, p.SampleRate, wavBitDepth, p.Channels, 1)
	e.frames = 0
	e.flushed = false
	return nil
}

func (e *WAVEncoder) Encode(ctx context.Context, planar [][]float32) error {
	if e.enc == nil {
		return ErrNotConfigured
	}
	if e.flushed {
		return errors.New("wav encoder already flushed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(planar) != e.params.Channels {
		return fmt.Errorf("got %d channels, encoder configured for %d", len(planar), e.params.Channels)
	}
	n := len(planar[0])
	for ch := range planar {
		if len(planar[ch]) != n {
			return fmt.Errorf("channel %d has %d samples, want %d", ch, len(planar[ch]), n)
		}
	}

	data := make([]int, n*len(planar))
	for i := 0; i < n; i++ {
		for ch := range planar {
			data[i*len(planar)+ch] = toPCM16(planar[ch][i])
		}
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: e.params.Channels, SampleRate: e.params.SampleRate},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}
	if err := e.enc.Write(buf); err != nil {
		return fmt.Errorf("writing PCM: %w", err)
	}
	e.frames += n
	return nil
}

// Flush finishes the WAV header and hands the file to the sink.
func (e *WAVEncoder) Flush(ctx context.Context) error {
	if e.enc == nil {
		return ErrNotConfigured
	}
	if e.flushed {
		return nil
	}
	if err := e.enc.Close(); err != nil {
		return fmt.Errorf("finishing WAV: %w", err)
	}
	e.flushed = true
	return e.sink(ctx, Chunk{
		Track:    Audio,
		Seq:      0,
		Duration: time.Duration(e.frames) * time.Second / time.Duration(e.params.SampleRate),
		Key:      true,
		Data:     e.out.Bytes(),
	})
}

func (e *WAVEncoder) Close() error {
	e.out = nil
	e.enc = nil
	return nil
}

func toPCM16(v float32) int {
	s := math.Round(float64(v) * 32767)
	return int(min(max(s, -32768), 32767))
}

// seekBuffer is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes once the data length is known.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	end := b.pos + len(p)
	if end > len(b.buf) {
		b.buf = append(b.buf, make([]byte, end-len(b.buf))...)
	}
	copy(b.buf[b.pos:], p)
	b.pos = end
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("negative seek position")
	}
	b.pos = int(abs)
	return abs, nil
}

func (b *seekBuffer) Bytes() []byte { return b.buf }
