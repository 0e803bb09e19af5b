package analysis

import (
	"context"
	"fmt"
	"math"
)

// ProfilePoint is the smoothed band energy at one timestamp.
type ProfilePoint struct {
	Time  float64
	Bands BandAverages
}

// Profile walks src from 0 to its end in fixed steps, running the same
// sample and smooth chain a render would.
func Profile(ctx context.Context, src Source, opts SamplerOptions, alpha, step float64) ([]ProfilePoint, error) {
	if step <= 0 || math.IsNaN(step) {
		return nil, fmt.Errorf("profile step must be positive, got %v", step)
	}
	if alpha < 0 || alpha >= 1 {
		return nil, fmt.Errorf("smoothing factor must be in [0, 1), got %v", alpha)
	}
	sampler, err := NewSampler(src, opts)
	if err != nil {
		return nil, err
	}
	smoother := NewSmoother(sampler.Bins(), alpha)

	duration := float64(src.Frames()) / float64(src.SampleRate())
	steps := int(math.Floor(duration / step))
	points := make([]ProfilePoint, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) * step
		spec, err := sampler.Sample(ctx, t)
		if err != nil {
			return nil, err
		}
		points = append(points, ProfilePoint{
			Time:  t,
			Bands: Extract(smoother.Apply(spec)),
		})
	}
	return points, nil
}
