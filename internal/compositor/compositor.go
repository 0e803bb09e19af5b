// Package compositor draws one video frame from an immutable layer snapshot.
//
// Layers are painted in a fixed order: background, particles, visualizer
// bars, logo, then text. Bars and logo share a bounce transform centered on
// the logo anchor; text is positioned in absolute surface coordinates.
package compositor

import (
	"fmt"
	"image"
	"image/color"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/rasterizer"
	"golang.org/x/image/draw"

	"github.com/olivier-w/beatframe/internal/analysis"
	"github.com/olivier-w/beatframe/internal/geometry"
	"github.com/olivier-w/beatframe/internal/particles"
)

// Background configures the backdrop. With no image, a vertical gradient
// from GradientTop to GradientBottom is drawn.
type Background struct {
	Zoom           float64
	Pulse          float64
	GradientTop    color.RGBA
	GradientBottom color.RGBA
}

// Logo places the logo anchor. X and Y are the anchor center as fractions of
// the surface; Width is a fraction of the surface width.
type Logo struct {
	X                float64
	Y                float64
	Width            float64
	Bounce           float64
	PlaceholderColor color.RGBA
}

// TextStyle configures one line of text. Offsets and size are in pixels.
type TextStyle struct {
	Content       string
	OffsetX       float64
	OffsetY       float64
	Size          float64
	Color         color.RGBA
	Bold          bool
	Italic        bool
	LetterSpacing float64
}

// Snapshot is the per-frame layer configuration. Callers hand the
// compositor a copy; changes made during a frame apply to the next one.
type Snapshot struct {
	Background Background
	Logo       Logo
	Visualizer geometry.Config
	Particles  particles.Config
	Main       TextStyle
	Author     TextStyle
}

// Compositor renders frames of a fixed size.
type Compositor struct {
	width  int
	height int
	assets Assets
	faces  *faceCache
}

// New prepares a compositor for a width x height surface.
func New(width, height int, assets Assets) (*Compositor, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid surface size %dx%d", width, height)
	}
	faces, err := newFaceCache()
	if err != nil {
		return nil, err
	}
	return &Compositor{width: width, height: height, assets: assets, faces: faces}, nil
}

// Bounds returns the surface rectangle.
func (c *Compositor) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.width, c.height)
}

// NewFrame allocates a surface sized for this compositor.
func (c *Compositor) NewFrame() *image.RGBA {
	return image.NewRGBA(c.Bounds())
}

// Compose paints one frame into dst.
func (c *Compositor) Compose(dst *image.RGBA, snap Snapshot, spectrum []float64, bands analysis.BandAverages, field []particles.Particle) error {
	if dst.Bounds() != c.Bounds() {
		return fmt.Errorf("surface is %v, compositor expects %v", dst.Bounds(), c.Bounds())
	}

	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	c.drawBackground(dst, snap.Background, bands.Mid)

	anchor := c.logoAnchor(snap.Logo)
	bounce := 1 + clampUnit(bands.Bass/255)*0.1*snap.Logo.Bounce
	layout := geometry.Compute(spectrum, anchor, snap.Visualizer)

	cv := canvas.New(float64(c.width), float64(c.height))
	ctx := canvas.NewContext(cv)
	if snap.Particles.Enabled {
		c.drawParticles(ctx, snap.Particles, field)
	}
	c.drawBars(ctx, layout, snap.Visualizer.Color, bounce)
	if c.assets.Logo == nil {
		c.drawPlaceholder(ctx, anchor, snap.Logo.PlaceholderColor, bounce)
	}
	cv.Render(rasterizer.New(dst, 1))

	if c.assets.Logo != nil {
		drawLogo(dst, c.assets.Logo, scaleRect(anchor, bounce))
	}

	mainX := float64(c.width)/2 + snap.Main.OffsetX
	mainY := float64(c.height)*0.82 + snap.Main.OffsetY
	if err := c.drawText(dst, snap.Main, mainX, mainY); err != nil {
		return err
	}
	authorX := float64(c.width)/2 + snap.Author.OffsetX
	authorY := float64(c.height)*0.82 + snap.Main.Size*1.2 + snap.Author.OffsetY
	return c.drawText(dst, snap.Author, authorX, authorY)
}

// logoAnchor returns the unscaled logo rectangle. Without a logo image the
// anchor is square.
func (c *Compositor) logoAnchor(l Logo) geometry.Rect {
	w := l.Width * float64(c.width)
	h := w
	if img := c.assets.Logo; img != nil {
		b := img.Bounds()
		if b.Dx() > 0 {
			h = w * float64(b.Dy()) / float64(b.Dx())
		}
	}
	cx := l.X * float64(c.width)
	cy := l.Y * float64(c.height)
	return geometry.Rect{X: cx - w/2, Y: cy - h/2, W: w, H: h}
}

func scaleRect(r geometry.Rect, s float64) geometry.Rect {
	center := r.Center()
	w, h := r.W*s, r.H*s
	return geometry.Rect{X: center.X - w/2, Y: center.Y - h/2, W: w, H: h}
}

func clampUnit(v float64) float64 {
	return min(max(v, 0), 1)
}
