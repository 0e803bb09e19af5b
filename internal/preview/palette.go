package preview

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// asciiRamp runs from darkest to brightest.
const asciiRamp = " .:-=+*#%@"

// ColorMode describes how thumbnail colors reach the terminal.
type ColorMode uint8

const (
	ColorOff ColorMode = iota
	ColorANSI16
	ColorANSI256
	ColorTrue
)

var (
	detectOnce sync.Once
	termColor  ColorMode
)

// DetectColorMode checks terminal capabilities once.
func DetectColorMode() ColorMode {
	detectOnce.Do(func() {
		termColor = colorModeFromEnv(os.Getenv)
	})
	return termColor
}

func colorModeFromEnv(getenv func(string) string) ColorMode {
	if getenv("NO_COLOR") != "" {
		return ColorOff
	}
	term := strings.ToLower(getenv("TERM"))
	ct := strings.ToLower(getenv("COLORTERM"))
	switch {
	case strings.Contains(ct, "truecolor"), strings.Contains(ct, "24bit"):
		return ColorTrue
	case strings.Contains(term, "256color"):
		return ColorANSI256
	case term == "dumb", term == "":
		return ColorOff
	default:
		return ColorANSI16
	}
}

func brightnessChar(lum uint8) byte {
	return asciiRamp[int(lum)*(len(asciiRamp)-1)/255]
}

// colorSeq returns the escape selecting r,g,b as foreground (base 38) or
// background (base 48).
func colorSeq(mode ColorMode, base int, r, g, b uint8) string {
	switch mode {
	case ColorTrue:
		return fmt.Sprintf("\x1b[%d;2;%d;%d;%dm", base, r, g, b)
	case ColorANSI256:
		idx := 16 + 36*(int(r)*5/255) + 6*(int(g)*5/255) + int(b)*5/255
		return fmt.Sprintf("\x1b[%d;5;%dm", base, idx)
	case ColorANSI16:
		best := nearestANSI16(r, g, b)
		offset := base - 8 // 30 for fg, 40 for bg
		if best < 8 {
			return fmt.Sprintf("\x1b[%dm", offset+best)
		}
		return fmt.Sprintf("\x1b[%dm", offset+60+best-8)
	default:
		return ""
	}
}

const ansiReset = "\x1b[0m"

func nearestANSI16(r, g, b uint8) int {
	best := 0
	bestDist := 1<<31 - 1
	for i, c := range ansi16Palette {
		dr := int(r) - int(c[0])
		dg := int(g) - int(c[1])
		db := int(b) - int(c[2])
		if d := dr*dr + dg*dg + db*db; d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

var ansi16Palette = [16][3]uint8{
	{0, 0, 0},
	{205, 49, 49},
	{13, 188, 121},
	{229, 229, 16},
	{36, 114, 200},
	{188, 63, 188},
	{17, 168, 205},
	{229, 229, 229},
	{102, 102, 102},
	{241, 76, 76},
	{35, 209, 139},
	{245, 245, 67},
	{59, 142, 234},
	{214, 112, 214},
	{41, 184, 219},
	{255, 255, 255},
}
