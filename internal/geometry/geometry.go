// Package geometry lays out the radial bar visualizer around the logo.
//
// Angles are measured clockwise from straight up, in screen space where y
// grows downward.
package geometry

import (
	"fmt"
	"image/color"
	"math"
)

// MinBarHeight is the shortest bar worth drawing.
const MinBarHeight = 1.0

// Reflection selects how many mirrored copies of the base bars are drawn.
type Reflection string

const (
	ReflectNone  Reflection = "none"
	ReflectTwo   Reflection = "two"
	ReflectFour  Reflection = "four"
	ReflectEight Reflection = "eight"
)

// ParseReflection validates a configured reflection mode.
func ParseReflection(s string) (Reflection, error) {
	switch r := Reflection(s); r {
	case ReflectNone, ReflectTwo, ReflectFour, ReflectEight:
		return r, nil
	default:
		return "", fmt.Errorf("unknown reflection mode %q", s)
	}
}

// Fold returns the number of copies the mode generates per base bar.
func (r Reflection) Fold() int {
	switch r {
	case ReflectTwo:
		return 2
	case ReflectFour:
		return 4
	case ReflectEight:
		return 8
	default:
		return 1
	}
}

// Config is the visualizer layer configuration.
type Config struct {
	Color        color.RGBA
	RotationDeg  float64
	Reflection   Reflection
	Sensitivity  float64
	BarCount     int
	BarThickness float64
	BarMaxHeight float64
	BarDistance  float64
}

// Point is a position in surface pixels.
type Point struct{ X, Y float64 }

// Rect is an axis-aligned box given by its top-left corner and size.
type Rect struct {
	X, Y, W, H float64
}

// Center returns the middle of r.
func (r Rect) Center() Point { return Point{X: r.X + r.W/2, Y: r.Y + r.H/2} }

// Bar is one drawn bar. Index is the spectrum bin it was computed from.
type Bar struct {
	Index  int
	Angle  float64
	Height float64
}

// Layout is the full set of bar placements for one frame.
type Layout struct {
	Center        Point
	Radius        float64
	MaxBarHeight  float64
	BarWidth      float64
	DistinctCount int
	Bars          []Bar
}

// Angles returns the F mirrored copies of base angle a.
func Angles(a float64, fold int) []float64 {
	switch fold {
	case 2:
		return []float64{a, -a}
	case 4:
		return []float64{a, -a, math.Pi - a, math.Pi + a}
	case 8:
		return []float64{
			a, -a,
			math.Pi/2 - a, math.Pi/2 + a,
			math.Pi - a, math.Pi + a,
			3*math.Pi/2 - a, 3*math.Pi/2 + a,
		}
	default:
		return []float64{a}
	}
}

// Compute places the bars for spectrum around anchor. Bins past the
// distinct count are ignored; missing bins read as zero.
func Compute(spectrum []float64, anchor Rect, cfg Config) Layout {
	fold := cfg.Reflection.Fold()
	l := Layout{
		Center:        anchor.Center(),
		Radius:        min(anchor.W, anchor.H)/2 + 15 + anchor.W*cfg.BarDistance,
		MaxBarHeight:  (anchor.W*0.5 + 20) * cfg.BarMaxHeight,
		BarWidth:      max(1, anchor.W*cfg.BarThickness),
		DistinctCount: cfg.BarCount / fold,
	}
	if l.DistinctCount <= 0 {
		return l
	}

	rotation := cfg.RotationDeg * math.Pi / 180
	l.Bars = make([]Bar, 0, l.DistinctCount*fold)
	for i := 0; i < l.DistinctCount; i++ {
		var v float64
		if i < len(spectrum) {
			v = spectrum[i]
		}
		h := v / 255 * l.MaxBarHeight * cfg.Sensitivity
		a := float64(i) / float64(l.DistinctCount) * (2 * math.Pi / float64(fold))
		for _, angle := range Angles(a, fold) {
			l.Bars = append(l.Bars, Bar{Index: i, Angle: angle + rotation, Height: h})
		}
	}
	return l
}

// Visible reports whether the bar is tall enough to draw.
func (b Bar) Visible() bool { return b.Height >= MinBarHeight }

// Direction is the unit vector pointing outward along the bar.
func (b Bar) Direction() Point {
	return Point{X: math.Sin(b.Angle), Y: -math.Cos(b.Angle)}
}

// Endpoints returns the inner and outer ends of the bar.
func (b Bar) Endpoints(center Point, radius float64) (inner, outer Point) {
	d := b.Direction()
	inner = Point{X: center.X + d.X*radius, Y: center.Y + d.Y*radius}
	outer = Point{X: inner.X + d.X*b.Height, Y: inner.Y + d.Y*b.Height}
	return inner, outer
}

// Corners returns the four corners of the bar as a quad of the given width,
// ordered around the perimeter.
func (b Bar) Corners(center Point, radius, width float64) [4]Point {
	inner, outer := b.Endpoints(center, radius)
	d := b.Direction()
	n := Point{X: -d.Y * width / 2, Y: d.X * width / 2}
	return [4]Point{
		{X: inner.X + n.X, Y: inner.Y + n.Y},
		{X: outer.X + n.X, Y: outer.Y + n.Y},
		{X: outer.X - n.X, Y: outer.Y - n.Y},
		{X: inner.X - n.X, Y: inner.Y - n.Y},
	}
}
