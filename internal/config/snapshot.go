package config

import (
	"github.com/olivier-w/beatframe/internal/compositor"
	"github.com/olivier-w/beatframe/internal/geometry"
	"github.com/olivier-w/beatframe/internal/particles"
)

// Snapshot converts the visual sections into the compositor's per-frame
// configuration. Call it on a validated config; invalid colors read as
// transparent.
func (c *Config) Snapshot() compositor.Snapshot {
	reflection, _ := geometry.ParseReflection(c.Visualizer.Reflection)
	direction, _ := particles.ParseDirection(c.Particles.Direction)
	return compositor.Snapshot{
		Background: compositor.Background{
			Zoom:           c.Background.Zoom,
			Pulse:          c.Background.Pulse,
			GradientTop:    mustColor(c.Background.GradientTop),
			GradientBottom: mustColor(c.Background.GradientBottom),
		},
		Logo: compositor.Logo{
			X:                c.Logo.X,
			Y:                c.Logo.Y,
			Width:            c.Logo.Width,
			Bounce:           c.Logo.Bounce,
			PlaceholderColor: mustColor(c.Logo.PlaceholderColor),
		},
		Visualizer: geometry.Config{
			Color:        mustColor(c.Visualizer.Color),
			RotationDeg:  c.Visualizer.Rotation,
			Reflection:   reflection,
			Sensitivity:  c.Visualizer.Sensitivity,
			BarCount:     c.Visualizer.BarCount,
			BarThickness: c.Visualizer.BarThickness,
			BarMaxHeight: c.Visualizer.BarMaxHeight,
			BarDistance:  c.Visualizer.BarDistance,
		},
		Particles: particles.Config{
			Enabled:   c.Particles.Enabled,
			Count:     c.Particles.Count,
			Direction: direction,
			Speed:     c.Particles.Speed,
			Color:     mustColor(c.Particles.Color),
			Size:      c.Particles.Size,
			Blur:      c.Particles.Blur,
		},
		Main:   textStyle(c.Text.Main),
		Author: textStyle(c.Text.Author),
	}
}

func textStyle(t TextLine) compositor.TextStyle {
	return compositor.TextStyle{
		Content:       t.Content,
		OffsetX:       t.OffsetX,
		OffsetY:       t.OffsetY,
		Size:          t.Size,
		Color:         mustColor(t.Color),
		Bold:          t.Bold,
		Italic:        t.Italic,
		LetterSpacing: t.LetterSpacing,
	}
}
