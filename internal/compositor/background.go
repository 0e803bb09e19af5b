package compositor

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/olivier-w/beatframe/internal/geometry"
)

// drawBackground paints the cover-fit background image, scaled about the
// surface center by zoom and the mid-band pulse, or the gradient fallback.
func (c *Compositor) drawBackground(dst *image.RGBA, bg Background, mid float64) {
	img := c.assets.Background
	if img == nil {
		drawGradient(dst, bg.GradientTop, bg.GradientBottom)
		return
	}

	sb := img.Bounds()
	if sb.Empty() {
		return
	}
	zoom := bg.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	pulse := 1 + clampUnit(mid/255)*0.05*bg.Pulse
	cover := max(float64(c.width)/float64(sb.Dx()), float64(c.height)/float64(sb.Dy()))
	s := cover * zoom * pulse

	// Map the source center onto the surface center.
	tx := float64(c.width)/2 - s*(float64(sb.Min.X)+float64(sb.Dx())/2)
	ty := float64(c.height)/2 - s*(float64(sb.Min.Y)+float64(sb.Dy())/2)
	draw.ApproxBiLinear.Transform(dst, f64.Aff3{s, 0, tx, 0, s, ty}, img, sb, draw.Over, nil)
}

func drawGradient(dst *image.RGBA, top, bottom color.RGBA) {
	b := dst.Bounds()
	h := b.Dy()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		var t float64
		if h > 1 {
			t = float64(y-b.Min.Y) / float64(h-1)
		}
		row := image.Rect(b.Min.X, y, b.Max.X, y+1)
		draw.Draw(dst, row, image.NewUniform(lerpRGBA(top, bottom, t)), image.Point{}, draw.Src)
	}
}

func lerpRGBA(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t + 0.5)
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
}

// drawLogo scales img into rect.
func drawLogo(dst *image.RGBA, img image.Image, rect geometry.Rect) {
	sb := img.Bounds()
	if sb.Empty() || rect.W <= 0 || rect.H <= 0 {
		return
	}
	sx := rect.W / float64(sb.Dx())
	sy := rect.H / float64(sb.Dy())
	aff := f64.Aff3{
		sx, 0, rect.X - sx*float64(sb.Min.X),
		0, sy, rect.Y - sy*float64(sb.Min.Y),
	}
	draw.ApproxBiLinear.Transform(dst, aff, img, sb, draw.Over, nil)
}
