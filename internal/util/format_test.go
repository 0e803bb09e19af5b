package util

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: -time.Second, want: "0:00"},
		{in: 0, want: "0:00"},
		{in: 1500 * time.Millisecond, want: "0:01"},
		{in: 3*time.Minute + 7*time.Second, want: "3:07"},
		{in: time.Hour + 2*time.Minute + 3*time.Second, want: "1:02:03"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
