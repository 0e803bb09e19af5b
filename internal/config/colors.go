package config

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ParseColor accepts #rgb, #rrggbb and #rrggbbaa. The result is
// premultiplied for use with image/draw.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		return color.RGBA{}, fmt.Errorf("color %q must start with #", s)
	}
	alpha := uint8(255)
	hex := s
	if len(s) == 9 {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("color %q: invalid alpha", s)
		}
		alpha = uint8(a)
		hex = s[:7]
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return premultiply(r, g, b, alpha), nil
}

func premultiply(r, g, b, a uint8) color.RGBA {
	scale := func(v uint8) uint8 {
		return uint8((uint32(v)*uint32(a) + 127) / 255)
	}
	return color.RGBA{R: scale(r), G: scale(g), B: scale(b), A: a}
}

func mustColor(s string) color.RGBA {
	c, err := ParseColor(s)
	if err != nil {
		return color.RGBA{}
	}
	return c
}
