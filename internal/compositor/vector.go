package compositor

import (
	"image/color"

	"github.com/tdewolff/canvas"

	"github.com/olivier-w/beatframe/internal/geometry"
	"github.com/olivier-w/beatframe/internal/particles"
)

// glowRings is the number of translucent halos drawn around a blurred
// particle.
const glowRings = 3

// The canvas y axis points up; surface coordinates point down.
func (c *Compositor) flipY(y float64) float64 {
	return float64(c.height) - y
}

func (c *Compositor) drawParticles(ctx *canvas.Context, cfg particles.Config, field []particles.Particle) {
	size := cfg.Size
	if size <= 0 {
		return
	}
	for _, p := range field {
		x, y := p.Pos.X, c.flipY(p.Pos.Y)
		if cfg.Blur > 0 {
			for k := glowRings; k >= 1; k-- {
				r := size + cfg.Blur*float64(k)/glowRings
				ctx.SetFillColor(withAlpha(cfg.Color, 0.35/float64(k+1)))
				ctx.DrawPath(x, y, canvas.Circle(r))
			}
		}
		ctx.SetFillColor(cfg.Color)
		ctx.DrawPath(x, y, canvas.Circle(size))
	}
}

// drawBars fills every visible bar as a quad, scaled by bounce about the
// layout center.
func (c *Compositor) drawBars(ctx *canvas.Context, layout geometry.Layout, col color.RGBA, bounce float64) {
	ctx.SetFillColor(col)
	for _, bar := range layout.Bars {
		if !bar.Visible() {
			continue
		}
		corners := bar.Corners(layout.Center, layout.Radius, layout.BarWidth)
		p := &canvas.Path{}
		for i, pt := range corners {
			pt = scaleAbout(pt, layout.Center, bounce)
			if i == 0 {
				p.MoveTo(pt.X, c.flipY(pt.Y))
			} else {
				p.LineTo(pt.X, c.flipY(pt.Y))
			}
		}
		p.Close()
		ctx.DrawPath(0, 0, p)
	}
}

// drawPlaceholder stands in for a missing logo: a ring with a play triangle.
func (c *Compositor) drawPlaceholder(ctx *canvas.Context, anchor geometry.Rect, col color.RGBA, bounce float64) {
	center := anchor.Center()
	r := min(anchor.W, anchor.H) / 2 * bounce
	if r <= 0 {
		return
	}
	x, y := center.X, c.flipY(center.Y)

	ctx.SetFillColor(col)
	ctx.DrawPath(x, y, canvas.Circle(r))
	ctx.SetFillColor(color.RGBA{A: 160})
	ctx.DrawPath(x, y, canvas.Circle(r*0.86))

	tri := &canvas.Path{}
	tri.MoveTo(-0.3*r, 0.4*r)
	tri.LineTo(-0.3*r, -0.4*r)
	tri.LineTo(0.45*r, 0)
	tri.Close()
	ctx.SetFillColor(col)
	ctx.DrawPath(x, y, tri)
}

func scaleAbout(p, center geometry.Point, s float64) geometry.Point {
	return geometry.Point{
		X: center.X + (p.X-center.X)*s,
		Y: center.Y + (p.Y-center.Y)*s,
	}
}

// withAlpha returns c at the given opacity, keeping it premultiplied.
func withAlpha(c color.RGBA, a float64) color.RGBA {
	f := clampUnit(a)
	return color.RGBA{
		R: uint8(float64(c.R) * f),
		G: uint8(float64(c.G) * f),
		B: uint8(float64(c.B) * f),
		A: uint8(float64(c.A) * f),
	}
}
