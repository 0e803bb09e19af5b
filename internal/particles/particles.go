// Package particles simulates the drifting particle field behind the
// visualizer. Motion is driven by bass energy and is fully reproducible from
// the seed.
package particles

import (
	"fmt"
	"image/color"
	"math/rand/v2"

	"github.com/charmbracelet/harmonica"
)

// Margin is how far past an edge a particle travels before it respawns.
const Margin = 5.0

// Direction names the edge particles come from. Particles drift away from it.
type Direction string

const (
	Top    Direction = "top"
	Bottom Direction = "bottom"
	Left   Direction = "left"
	Right  Direction = "right"
)

// ParseDirection validates a configured direction name.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Top, Bottom, Left, Right:
		return d, nil
	default:
		return "", fmt.Errorf("unknown particle direction %q", s)
	}
}

// unit returns the drift direction, opposite to the named edge. Screen y
// grows downward.
func (d Direction) unit() harmonica.Vector {
	switch d {
	case Bottom:
		return harmonica.Vector{Y: -1}
	case Left:
		return harmonica.Vector{X: 1}
	case Right:
		return harmonica.Vector{X: -1}
	default:
		return harmonica.Vector{Y: 1}
	}
}

func (d Direction) horizontal() bool { return d == Left || d == Right }

// Config is the particle layer configuration. Count, Direction and Enabled
// define an epoch; changing any of them reseeds the field.
type Config struct {
	Enabled   bool
	Count     int
	Direction Direction
	Speed     float64
	Color     color.RGBA
	Size      float64
	Blur      float64
}

func (c Config) sameEpoch(o Config) bool {
	return c.Enabled == o.Enabled && c.Count == o.Count && c.Direction == o.Direction
}

// Particle is one point of the field. ID is stable for the particle's
// lifetime in an epoch, including across respawns.
type Particle struct {
	ID  uint64
	Pos harmonica.Point
	Vel harmonica.Vector
}

// Field owns the particle set for a single render job.
type Field struct {
	cfg       Config
	width     float64
	height    float64
	rng       *rand.Rand
	particles []Particle
	nextID    uint64
	respawns  int
}

// New seeds a field covering a width x height surface.
func New(cfg Config, width, height int, seed uint64) *Field {
	f := &Field{
		cfg:    cfg,
		width:  float64(width),
		height: float64(height),
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	f.reset()
	return f
}

func (f *Field) reset() {
	f.particles = nil
	if !f.cfg.Enabled || f.cfg.Count <= 0 {
		return
	}
	f.particles = make([]Particle, 0, f.cfg.Count)
	dir := f.cfg.Direction.unit()
	for i := 0; i < f.cfg.Count; i++ {
		mag := 1 + f.rng.Float64()
		f.nextID++
		f.particles = append(f.particles, Particle{
			ID:  f.nextID,
			Pos: harmonica.Point{X: f.rng.Float64() * f.width, Y: f.rng.Float64() * f.height},
			Vel: harmonica.Vector{X: dir.X * mag, Y: dir.Y * mag},
		})
	}
}

// Update advances every particle one tick. bass is the current bass band
// average in [0, 255].
func (f *Field) Update(bass float64) {
	intensity := min(max(bass/255, 0), 1)
	k := f.cfg.Speed * (1 + 0.3*intensity)
	for i := range f.particles {
		p := &f.particles[i]
		p.Pos.X += p.Vel.X * k
		p.Pos.Y += p.Vel.Y * k
		f.wrap(p)
	}
}

// wrap respawns a particle that left through its travel edge at the
// opposite edge.
func (f *Field) wrap(p *Particle) {
	switch f.cfg.Direction {
	case Bottom:
		if p.Pos.Y < -Margin {
			p.Pos = harmonica.Point{X: f.rng.Float64() * f.width, Y: f.height + Margin}
			f.respawns++
		}
	case Left:
		if p.Pos.X > f.width+Margin {
			p.Pos = harmonica.Point{X: -Margin, Y: f.rng.Float64() * f.height}
			f.respawns++
		}
	case Right:
		if p.Pos.X < -Margin {
			p.Pos = harmonica.Point{X: f.width + Margin, Y: f.rng.Float64() * f.height}
			f.respawns++
		}
	default:
		if p.Pos.Y > f.height+Margin {
			p.Pos = harmonica.Point{X: f.rng.Float64() * f.width, Y: -Margin}
			f.respawns++
		}
	}
}

// Reconfigure applies cfg and reports whether the field was reseeded.
// Speed, color, size and blur changes keep every particle in place.
func (f *Field) Reconfigure(cfg Config) bool {
	reseed := !f.cfg.sameEpoch(cfg)
	f.cfg = cfg
	if reseed {
		f.reset()
	}
	return reseed
}

// Config returns the active configuration.
func (f *Field) Config() Config { return f.cfg }

// Particles returns the live particle slice. It is only valid until the
// next Update or Reconfigure.
func (f *Field) Particles() []Particle { return f.particles }

// Respawns counts edge crossings since the field was created.
func (f *Field) Respawns() int { return f.respawns }

// Bounds returns the allowed range on the axis of travel.
func (f *Field) Bounds() (lo, hi float64) {
	if f.cfg.Direction.horizontal() {
		return -Margin, f.width + Margin
	}
	return -Margin, f.height + Margin
}
