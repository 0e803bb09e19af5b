package audio

import (
	"errors"
	"testing"
	"time"
)

func TestNewSignalValidation(t *testing.T) {
	tests := []struct {
		name string
		rate int
		data [][]float32
	}{
		{name: "zero rate", rate: 0, data: [][]float32{{0}}},
		{name: "no channels", rate: 44100, data: nil},
		{name: "ragged channels", rate: 44100, data: [][]float32{{0, 0}, {0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSignal(tt.rate, tt.data); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, err := NewSignal(44100, [][]float32{{}}); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty for zero frames, got %v", err)
	}
}

func TestSignalDuration(t *testing.T) {
	sig, err := NewSignal(4, [][]float32{make([]float32, 10)})
	if err != nil {
		t.Fatal(err)
	}
	if sig.Seconds() != 2.5 {
		t.Fatalf("Seconds() = %v, want 2.5", sig.Seconds())
	}
	if sig.Duration() != 2500*time.Millisecond {
		t.Fatalf("Duration() = %v, want 2.5s", sig.Duration())
	}
}

func TestSignalMonoAveragesAndPadsWithSilence(t *testing.T) {
	sig, err := NewSignal(8000, [][]float32{
		{1, 0.5, 0},
		{0, 0.5, -1},
	})
	if err != nil {
		t.Fatal(err)
	}

	dst := make([]float64, 5)
	sig.Mono(-1, dst)
	want := []float64{0, 0.5, 0.5, -0.5, 0}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst[%d] = %v, want %v (all %v)", i, dst[i], want[i], dst)
		}
	}
}

func TestDeinterleaveDropsPartialFrame(t *testing.T) {
	out := deinterleave([]float32{1, 2, 3, 4, 5}, 2)
	if len(out) != 2 || len(out[0]) != 2 {
		t.Fatalf("unexpected shape: %v", out)
	}
	if out[0][1] != 3 || out[1][1] != 4 {
		t.Fatalf("unexpected values: %v", out)
	}
}
