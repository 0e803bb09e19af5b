package analysis

import (
	"math"
	"testing"
)

func TestSmootherAlphaZeroHasNoMemory(t *testing.T) {
	s := NewSmoother(4, 0)
	inputs := []Spectrum{
		{10, 20, 30, 40},
		{255, 0, 255, 0},
		{1, 2, 3, 4},
	}
	for tick, raw := range inputs {
		got := s.Apply(raw)
		for i := range raw {
			if got[i] != float64(raw[i]) {
				t.Fatalf("tick %d bin %d = %v, want %d", tick, i, got[i], raw[i])
			}
		}
	}
}

func TestSmootherConvergesToConstantInput(t *testing.T) {
	for _, alpha := range []float64{0.1, 0.5, 0.8, 0.95} {
		s := NewSmoother(3, alpha)
		raw := Spectrum{200, 0, 77}
		var got []float64
		for i := 0; i < 2000; i++ {
			got = s.Apply(raw)
		}
		for i := range raw {
			if math.Abs(got[i]-float64(raw[i])) > 1e-6 {
				t.Fatalf("alpha=%v bin %d = %v, want %d", alpha, i, got[i], raw[i])
			}
		}
	}
}

func TestSmootherBlend(t *testing.T) {
	s := NewSmoother(1, 0.75)
	if got := s.Apply(Spectrum{100})[0]; got != 25 {
		t.Fatalf("first tick = %v, want 25", got)
	}
	if got := s.Apply(Spectrum{100})[0]; got != 43.75 {
		t.Fatalf("second tick = %v, want 43.75", got)
	}
	s.Reset()
	if got := s.Apply(Spectrum{0})[0]; got != 0 {
		t.Fatalf("after reset = %v, want 0", got)
	}
}

func TestSmootherLengthMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on length mismatch")
		}
	}()
	NewSmoother(4, 0.5).Apply(Spectrum{1, 2})
}

func TestNewSmootherRejectsAlpha(t *testing.T) {
	for _, alpha := range []float64{-0.1, 1, 1.5} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic for alpha %v", alpha)
				}
			}()
			NewSmoother(4, alpha)
		}()
	}
}
