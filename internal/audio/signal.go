package audio

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmpty is returned when a decoder produced no sample frames.
var ErrEmpty = errors.New("no audio samples decoded")

// Signal is a fully decoded audio track held in memory as planar float
// samples normalized to [-1, 1].
type Signal struct {
	rate int
	data [][]float32
}

// NewSignal validates and wraps planar sample data. Every channel must hold
// the same number of frames.
func NewSignal(rate int, data [][]float32) (*Signal, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", rate)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("invalid channel count: 0")
	}
	frames := len(data[0])
	for ch := range data {
		if len(data[ch]) != frames {
			return nil, fmt.Errorf("channel %d has %d frames, want %d", ch, len(data[ch]), frames)
		}
	}
	if frames == 0 {
		return nil, ErrEmpty
	}
	return &Signal{rate: rate, data: data}, nil
}

func (s *Signal) SampleRate() int   { return s.rate }
func (s *Signal) ChannelCount() int { return len(s.data) }
func (s *Signal) Frames() int       { return len(s.data[0]) }

// Planar returns the per-channel sample slices. Callers must not modify them.
func (s *Signal) Planar() [][]float32 { return s.data }

// Seconds returns the track length in seconds.
func (s *Signal) Seconds() float64 {
	return float64(s.Frames()) / float64(s.rate)
}

// Duration returns the track length.
func (s *Signal) Duration() time.Duration {
	return time.Duration(s.Seconds() * float64(time.Second))
}

// Mono fills dst with the channel average of frames [start, start+len(dst)).
// Frames outside the signal read as silence.
func (s *Signal) Mono(start int, dst []float64) {
	frames := s.Frames()
	scale := 1 / float64(len(s.data))
	for i := range dst {
		idx := start + i
		if idx < 0 || idx >= frames {
			dst[i] = 0
			continue
		}
		var sum float64
		for ch := range s.data {
			sum += float64(s.data[ch][idx])
		}
		dst[i] = sum * scale
	}
}

// deinterleave splits interleaved samples into planar channels, dropping a
// trailing partial frame.
func deinterleave(samples []float32, channels int) [][]float32 {
	frames := len(samples) / channels
	out := make([][]float32, channels)
	for ch := range out {
		out[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		base := i * channels
		for ch := 0; ch < channels; ch++ {
			out[ch][i] = samples[base+ch]
		}
	}
	return out
}
