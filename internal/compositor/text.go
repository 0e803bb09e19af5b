package compositor

import (
	"fmt"
	"image"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

type faceKey struct {
	bold   bool
	italic bool
	size   float64
}

// faceCache holds the parsed Go font family and the faces sized from it.
type faceCache struct {
	mu    sync.Mutex
	fonts [4]*opentype.Font
	faces map[faceKey]font.Face
}

func newFaceCache() (*faceCache, error) {
	fc := &faceCache{faces: make(map[faceKey]font.Face)}
	for i, ttf := range [][]byte{goregular.TTF, gobold.TTF, goitalic.TTF, gobolditalic.TTF} {
		f, err := opentype.Parse(ttf)
		if err != nil {
			return nil, fmt.Errorf("parsing built-in font: %w", err)
		}
		fc.fonts[i] = f
	}
	return fc, nil
}

func (fc *faceCache) face(bold, italic bool, size float64) (font.Face, error) {
	key := faceKey{bold: bold, italic: italic, size: size}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if f, ok := fc.faces[key]; ok {
		return f, nil
	}

	idx := 0
	if bold {
		idx |= 1
	}
	if italic {
		idx |= 2
	}
	f, err := opentype.NewFace(fc.fonts[idx], &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("creating %.1fpx face: %w", size, err)
	}
	fc.faces[key] = f
	return f, nil
}

// drawText draws a line horizontally centered on x with its baseline at y.
func (c *Compositor) drawText(dst *image.RGBA, style TextStyle, x, y float64) error {
	if style.Content == "" || style.Size <= 0 {
		return nil
	}
	face, err := c.faces.face(style.Bold, style.Italic, style.Size)
	if err != nil {
		return err
	}

	spacing := fixed.Int26_6(math.Round(style.LetterSpacing * 64))
	runes := []rune(style.Content)
	var width fixed.Int26_6
	for i, r := range runes {
		adv, _ := face.GlyphAdvance(r)
		width += adv
		if i < len(runes)-1 {
			width += spacing
		}
	}

	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(style.Color),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(math.Round(x*64)) - width/2, Y: fixed.Int26_6(math.Round(y * 64))},
	}
	for _, r := range runes {
		d.DrawString(string(r))
		d.Dot.X += spacing
	}
	return nil
}
