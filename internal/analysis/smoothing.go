package analysis

import "fmt"

// Smoother blends successive spectra exponentially. The state starts at zero
// and persists until Reset.
type Smoother struct {
	alpha float64
	state []float64
}

// NewSmoother panics when alpha is outside [0, 1); config validation keeps
// user input from reaching it.
func NewSmoother(bins int, alpha float64) *Smoother {
	if alpha < 0 || alpha >= 1 {
		panic(fmt.Sprintf("analysis: smoothing factor %v outside [0, 1)", alpha))
	}
	return &Smoother{alpha: alpha, state: make([]float64, bins)}
}

// Apply folds raw into the state and returns it. The returned slice is
// overwritten by the next call.
func (s *Smoother) Apply(raw Spectrum) []float64 {
	if len(raw) != len(s.state) {
		panic(fmt.Sprintf("analysis: spectrum length %d does not match smoother length %d", len(raw), len(s.state)))
	}
	a := s.alpha
	for i, v := range raw {
		s.state[i] = a*s.state[i] + (1-a)*float64(v)
	}
	return s.state
}

// Reset forgets the smoothing history.
func (s *Smoother) Reset() {
	clear(s.state)
}
