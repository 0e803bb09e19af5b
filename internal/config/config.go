// Package config loads the TOML project configuration that describes output
// settings and the look of the rendered video.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Output controls the rendered container.
type Output struct {
	Width    int    `toml:"width"`
	Height   int    `toml:"height"`
	FPS      int    `toml:"fps"`
	Format   string `toml:"format"`
	Quality  int    `toml:"quality"`
	CRF      int    `toml:"crf"`
	Dir      string `toml:"dir"`
	StateDir string `toml:"state_dir"`
}

// Analysis controls the spectral sampler and smoothing.
type Analysis struct {
	FFTSize      int     `toml:"fft_size"`
	BufferLength int     `toml:"buffer_length"`
	Smoothing    float64 `toml:"smoothing"`
	MinDB        float64 `toml:"min_db"`
	MaxDB        float64 `toml:"max_db"`
}

type Background struct {
	Image          string  `toml:"image"`
	Zoom           float64 `toml:"zoom"`
	Pulse          float64 `toml:"pulse"`
	GradientTop    string  `toml:"gradient_top"`
	GradientBottom string  `toml:"gradient_bottom"`
}

type Logo struct {
	Image            string  `toml:"image"`
	X                float64 `toml:"x"`
	Y                float64 `toml:"y"`
	Width            float64 `toml:"width"`
	Bounce           float64 `toml:"bounce"`
	PlaceholderColor string  `toml:"placeholder_color"`
}

type Visualizer struct {
	Color        string  `toml:"color"`
	Rotation     float64 `toml:"rotation"`
	Reflection   string  `toml:"reflection"`
	Sensitivity  float64 `toml:"sensitivity"`
	BarCount     int     `toml:"bar_count"`
	BarThickness float64 `toml:"bar_thickness"`
	BarMaxHeight float64 `toml:"bar_max_height"`
	BarDistance  float64 `toml:"bar_distance"`
}

type Particles struct {
	Enabled   bool    `toml:"enabled"`
	Count     int     `toml:"count"`
	Direction string  `toml:"direction"`
	Speed     float64 `toml:"speed"`
	Color     string  `toml:"color"`
	Size      float64 `toml:"size"`
	Blur      float64 `toml:"blur"`
	Seed      uint64  `toml:"seed"`
}

// TextLine styles one line of overlay text. Empty content is filled from the
// audio file's tags when available.
type TextLine struct {
	Content       string  `toml:"content"`
	OffsetX       float64 `toml:"offset_x"`
	OffsetY       float64 `toml:"offset_y"`
	Size          float64 `toml:"size"`
	Color         string  `toml:"color"`
	Bold          bool    `toml:"bold"`
	Italic        bool    `toml:"italic"`
	LetterSpacing float64 `toml:"letter_spacing"`
}

type Text struct {
	Main   TextLine `toml:"main"`
	Author TextLine `toml:"author"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the full project configuration.
type Config struct {
	Output     Output     `toml:"output"`
	Analysis   Analysis   `toml:"analysis"`
	Background Background `toml:"background"`
	Logo       Logo       `toml:"logo"`
	Visualizer Visualizer `toml:"visualizer"`
	Particles  Particles  `toml:"particles"`
	Text       Text       `toml:"text"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath is where Load looks when no path is given.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/beatframe/config.toml")
}

// Load locates, parses, normalizes and validates a configuration file. A
// missing file at the default location yields the defaults; a missing file
// at an explicit path is an error.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, fmt.Errorf("config file %s not found", expanded)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(defaultPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defaultPath, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return defaultPath, true, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// SampleConfig returns the annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
