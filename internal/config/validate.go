package config

import (
	"errors"
	"fmt"

	"github.com/olivier-w/beatframe/internal/analysis"
	"github.com/olivier-w/beatframe/internal/encode"
	"github.com/olivier-w/beatframe/internal/geometry"
	"github.com/olivier-w/beatframe/internal/particles"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateVisuals(); err != nil {
		return err
	}
	return c.validateColors()
}

func (c *Config) validateOutput() error {
	if _, err := encode.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	if err := c.VideoParams().Validate(); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if c.Output.CRF < 0 || c.Output.CRF > 51 {
		return errors.New("output.crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if err := c.SamplerOptions().Validate(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	if c.Analysis.Smoothing < 0 || c.Analysis.Smoothing >= 1 {
		return errors.New("analysis.smoothing must be in [0, 1)")
	}
	return nil
}

func (c *Config) validateVisuals() error {
	if c.Background.Zoom <= 0 {
		return errors.New("background.zoom must be positive")
	}
	if c.Logo.Width <= 0 || c.Logo.Width > 1 {
		return errors.New("logo.width must be in (0, 1]")
	}
	if _, err := geometry.ParseReflection(c.Visualizer.Reflection); err != nil {
		return fmt.Errorf("visualizer.reflection: %w", err)
	}
	if c.Visualizer.BarCount < 8 || c.Visualizer.BarCount > 128 {
		return errors.New("visualizer.bar_count must be between 8 and 128")
	}
	if c.Visualizer.Sensitivity < 0 || c.Visualizer.BarThickness < 0 || c.Visualizer.BarMaxHeight < 0 {
		return errors.New("visualizer sizes must not be negative")
	}
	if _, err := particles.ParseDirection(c.Particles.Direction); err != nil {
		return fmt.Errorf("particles.direction: %w", err)
	}
	if c.Particles.Count < 0 || c.Particles.Count > 10000 {
		return errors.New("particles.count must be between 0 and 10000")
	}
	if c.Particles.Speed < 0 || c.Particles.Size < 0 || c.Particles.Blur < 0 {
		return errors.New("particle speed, size and blur must not be negative")
	}
	if c.Text.Main.Size < 0 || c.Text.Author.Size < 0 {
		return errors.New("text sizes must not be negative")
	}
	return nil
}

func (c *Config) validateColors() error {
	fields := []struct {
		name  string
		value string
	}{
		{"background.gradient_top", c.Background.GradientTop},
		{"background.gradient_bottom", c.Background.GradientBottom},
		{"logo.placeholder_color", c.Logo.PlaceholderColor},
		{"visualizer.color", c.Visualizer.Color},
		{"particles.color", c.Particles.Color},
		{"text.main.color", c.Text.Main.Color},
		{"text.author.color", c.Text.Author.Color},
	}
	for _, f := range fields {
		if _, err := ParseColor(f.value); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return nil
}

// SamplerOptions maps [analysis] onto the spectral sampler.
func (c *Config) SamplerOptions() analysis.SamplerOptions {
	return analysis.SamplerOptions{
		WindowSize:   c.Analysis.FFTSize,
		BufferLength: c.Analysis.BufferLength,
		MinDecibels:  c.Analysis.MinDB,
		MaxDecibels:  c.Analysis.MaxDB,
	}
}

// VideoParams maps [output] onto the video encoder.
func (c *Config) VideoParams() encode.VideoParams {
	return encode.VideoParams{
		Width:     c.Output.Width,
		Height:    c.Output.Height,
		FrameRate: c.Output.FPS,
		Quality:   c.Output.Quality,
	}
}

// MuxOptions maps [output] onto the container muxer.
func (c *Config) MuxOptions() encode.MuxOptions {
	opts := encode.DefaultMuxOptions()
	opts.Format = encode.Format(c.Output.Format)
	opts.CRF = c.Output.CRF
	return opts
}
