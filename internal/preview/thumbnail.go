// Package preview draws rendered frames as terminal thumbnails.
package preview

import (
	"image"
	"math"
	"strings"
)

// Renderer converts frames into terminal strings. In color modes each cell
// is an upper half block with fg = top pixel and bg = bottom pixel, so one
// terminal row covers two pixel rows. Without color each cell is a
// brightness character.
type Renderer struct {
	mode ColorMode
	sb   strings.Builder
}

// NewRenderer uses the current terminal's color capabilities.
func NewRenderer() *Renderer {
	return &Renderer{mode: DetectColorMode()}
}

// NewRendererMode forces a color mode.
func NewRendererMode(mode ColorMode) *Renderer {
	return &Renderer{mode: mode}
}

// Mode reports the renderer's color mode.
func (r *Renderer) Mode() ColorMode { return r.mode }

// Render samples img into an outW x outH cell thumbnail using nearest
// neighbour.
func (r *Renderer) Render(img *image.RGBA, outW, outH int) string {
	if img == nil || outW <= 0 || outH <= 0 {
		return ""
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return ""
	}

	r.sb.Reset()
	r.sb.Grow(outW * outH * 24)
	if r.mode == ColorOff {
		r.renderASCII(img, outW, outH)
	} else {
		r.renderHalfBlock(img, outW, outH)
	}
	return r.sb.String()
}

func (r *Renderer) renderHalfBlock(img *image.RGBA, outW, outH int) {
	b := img.Bounds()
	pixelRows := outH * 2
	var lastFg, lastBg string
	for row := 0; row < outH; row++ {
		for col := 0; col < outW; col++ {
			x := b.Min.X + col*b.Dx()/outW
			topY := b.Min.Y + (row*2)*b.Dy()/pixelRows
			botY := b.Min.Y + (row*2+1)*b.Dy()/pixelRows

			tr, tg, tb := samplePixel(img, x, topY)
			br, bg, bb := samplePixel(img, x, botY)

			if fg := colorSeq(r.mode, 38, tr, tg, tb); fg != lastFg {
				r.sb.WriteString(fg)
				lastFg = fg
			}
			if bgc := colorSeq(r.mode, 48, br, bg, bb); bgc != lastBg {
				r.sb.WriteString(bgc)
				lastBg = bgc
			}
			r.sb.WriteString("▀")
		}
		r.sb.WriteString(ansiReset)
		lastFg, lastBg = "", ""
		if row < outH-1 {
			r.sb.WriteByte('\n')
		}
	}
}

func (r *Renderer) renderASCII(img *image.RGBA, outW, outH int) {
	b := img.Bounds()
	for row := 0; row < outH; row++ {
		for col := 0; col < outW; col++ {
			x := b.Min.X + col*b.Dx()/outW
			y := b.Min.Y + row*b.Dy()/outH
			pr, pg, pb := samplePixel(img, x, y)
			r.sb.WriteByte(brightnessChar(luminance(pr, pg, pb)))
		}
		if row < outH-1 {
			r.sb.WriteByte('\n')
		}
	}
}

func samplePixel(img *image.RGBA, x, y int) (uint8, uint8, uint8) {
	off := img.PixOffset(x, y)
	if off < 0 || off+2 >= len(img.Pix) {
		return 0, 0, 0
	}
	return img.Pix[off], img.Pix[off+1], img.Pix[off+2]
}

// luminance is ITU-R BT.601 brightness in integer math.
func luminance(r, g, b uint8) uint8 {
	return uint8((299*int(r) + 587*int(g) + 114*int(b)) / 1000)
}

// Fit returns the largest aspect-correct thumbnail, in cells, that fits a
// maxW x maxH cell area. Terminal cells are about twice as tall as wide.
func Fit(maxW, maxH, srcW, srcH int) (outW, outH int) {
	if srcW <= 0 || srcH <= 0 || maxW <= 0 || maxH <= 0 {
		return 0, 0
	}
	aspect := float64(srcW) / float64(srcH)
	outW = maxW
	outH = int(math.Round(float64(outW) / aspect / 2))
	if outH > maxH {
		outH = maxH
		outW = int(math.Round(float64(outH) * aspect * 2))
	}
	return max(outW, 4), max(outH, 2)
}
