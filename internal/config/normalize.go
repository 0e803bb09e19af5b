package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	if strings.TrimSpace(c.Output.Dir) == "" {
		c.Output.Dir = "."
	}
	if c.Output.Dir, err = expandPath(c.Output.Dir); err != nil {
		return fmt.Errorf("output.dir: %w", err)
	}
	if strings.TrimSpace(c.Output.StateDir) == "" {
		c.Output.StateDir = Default().Output.StateDir
	}
	if c.Output.StateDir, err = expandPath(c.Output.StateDir); err != nil {
		return fmt.Errorf("output.state_dir: %w", err)
	}
	if c.Background.Image, err = expandPath(strings.TrimSpace(c.Background.Image)); err != nil {
		return fmt.Errorf("background.image: %w", err)
	}
	if c.Logo.Image, err = expandPath(strings.TrimSpace(c.Logo.Image)); err != nil {
		return fmt.Errorf("logo.image: %w", err)
	}

	c.Visualizer.Reflection = strings.ToLower(strings.TrimSpace(c.Visualizer.Reflection))
	if c.Visualizer.Reflection == "" {
		c.Visualizer.Reflection = "none"
	}
	c.Particles.Direction = strings.ToLower(strings.TrimSpace(c.Particles.Direction))
	if c.Particles.Direction == "" {
		c.Particles.Direction = "top"
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	return nil
}
