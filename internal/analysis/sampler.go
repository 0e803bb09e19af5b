package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// ErrNegativeTimestamp is returned when Sample is asked for t < 0.
var ErrNegativeTimestamp = errors.New("negative sample timestamp")

// Spectrum holds byte-quantized magnitudes, one per frequency bin.
type Spectrum []uint8

// Source is the decoded audio a Sampler reads from.
type Source interface {
	SampleRate() int
	Frames() int
	Mono(start int, dst []float64)
}

// SamplerOptions mirrors the analyser parameters of a live preview so
// offline renders match what the user saw.
type SamplerOptions struct {
	WindowSize   int
	BufferLength int
	MinDecibels  float64
	MaxDecibels  float64
}

// DefaultSamplerOptions returns the analyser defaults.
func DefaultSamplerOptions() SamplerOptions {
	return SamplerOptions{
		WindowSize:   2048,
		BufferLength: 4096,
		MinDecibels:  -100,
		MaxDecibels:  -30,
	}
}

// Validate checks the window and decibel range.
func (o SamplerOptions) Validate() error {
	w := o.WindowSize
	if w < 32 || w > 32768 || w&(w-1) != 0 {
		return fmt.Errorf("window size must be a power of two in [32, 32768], got %d", w)
	}
	if o.BufferLength < w {
		return fmt.Errorf("buffer length %d is shorter than window size %d", o.BufferLength, w)
	}
	if o.MaxDecibels <= o.MinDecibels {
		return fmt.Errorf("max decibels %.1f must exceed min decibels %.1f", o.MaxDecibels, o.MinDecibels)
	}
	return nil
}

// Sampler reconstructs the spectrum at an arbitrary timestamp. It reuses
// internal buffers and is not safe for concurrent use.
type Sampler struct {
	src    Source
	opts   SamplerOptions
	logger *slog.Logger

	fft    *fourier.FFT
	window window.Values
	buf    []float64
	frame  []float64
	coeffs []complex128
}

// NewSampler prepares an FFT plan for src.
func NewSampler(src Source, opts SamplerOptions) (*Sampler, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	w := opts.WindowSize
	return &Sampler{
		src:    src,
		opts:   opts,
		logger: slog.New(slog.DiscardHandler),
		fft:    fourier.NewFFT(w),
		window: window.NewValues(window.Blackman, w),
		buf:    make([]float64, opts.BufferLength),
		frame:  make([]float64, w),
		coeffs: make([]complex128, w/2+1),
	}, nil
}

// SetLogger routes debug output, such as samples past the end of the
// source. A nil logger discards it.
func (s *Sampler) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s.logger = logger
}

// Bins returns the spectrum length, half the window size.
func (s *Sampler) Bins() int { return s.opts.WindowSize / 2 }

// Sample returns the spectrum of the window ending at t seconds. A t past
// the end of the source yields silence.
func (s *Sampler) Sample(ctx context.Context, t float64) (Spectrum, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t < 0 || math.IsNaN(t) {
		return nil, fmt.Errorf("%w: %v", ErrNegativeTimestamp, t)
	}

	out := make(Spectrum, s.Bins())
	end := int(math.Round(t * float64(s.src.SampleRate())))
	if end > s.src.Frames() {
		s.logger.Debug("sample past end of audio, using silence",
			"t", t, "end_frame", end, "frames", s.src.Frames())
		return out, nil
	}

	l := len(s.buf)
	w := len(s.frame)
	s.src.Mono(end-l, s.buf)
	s.window.TransformTo(s.frame, s.buf[l-w:])
	s.fft.Coefficients(s.coeffs, s.frame)

	minDb := s.opts.MinDecibels
	scale := 255 / (s.opts.MaxDecibels - minDb)
	for k := range out {
		mag := cmplx.Abs(s.coeffs[k]) / float64(w)
		db := 20 * math.Log10(mag)
		v := math.Floor(scale * (db - minDb))
		switch {
		case math.IsNaN(v) || v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		out[k] = uint8(v)
	}
	return out, nil
}
