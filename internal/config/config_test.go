package config

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/olivier-w/beatframe/internal/encode"
	"github.com/olivier-w/beatframe/internal/geometry"
	"github.com/olivier-w/beatframe/internal/particles"
)

func TestLoadMissingDefaultUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, resolved, exists, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved != filepath.Join(home, ".config", "beatframe", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if cfg.Output.StateDir != filepath.Join(home, ".local", "state", "beatframe") {
		t.Fatalf("state dir not expanded: %q", cfg.Output.StateDir)
	}
	if cfg.Output.Width != 1280 || cfg.Analysis.FFTSize != 2048 || cfg.Visualizer.BarCount != 64 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	if _, _, _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for a missing explicit config")
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[output]
format = " MKV "
fps = 24

[visualizer]
reflection = "Eight"
bar_count = 100

[particles]
direction = "LEFT"

[text.main]
content = "Night Drive"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved=%q exists=%v", resolved, exists)
	}
	if cfg.Output.Format != "mkv" || cfg.Output.FPS != 24 || cfg.Output.Width != 1280 {
		t.Fatalf("unexpected output: %+v", cfg.Output)
	}
	if cfg.MuxOptions().Format != encode.MKV {
		t.Fatalf("mux format = %q", cfg.MuxOptions().Format)
	}

	snap := cfg.Snapshot()
	if snap.Visualizer.Reflection != geometry.ReflectEight || snap.Visualizer.BarCount != 100 {
		t.Fatalf("unexpected visualizer: %+v", snap.Visualizer)
	}
	if snap.Particles.Direction != particles.Left {
		t.Fatalf("unexpected direction %q", snap.Particles.Direction)
	}
	if snap.Main.Content != "Night Drive" || !snap.Main.Bold || snap.Main.Size != 42 {
		t.Fatalf("unexpected main text: %+v", snap.Main)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[output]\nwidht = 640\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, _, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "widht") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "odd width", mutate: func(c *Config) { c.Output.Width = 641 }, want: "output"},
		{name: "format", mutate: func(c *Config) { c.Output.Format = "avi" }, want: "output.format"},
		{name: "crf", mutate: func(c *Config) { c.Output.CRF = 52 }, want: "output.crf"},
		{name: "fft size", mutate: func(c *Config) { c.Analysis.FFTSize = 1000 }, want: "analysis"},
		{name: "smoothing", mutate: func(c *Config) { c.Analysis.Smoothing = 1 }, want: "analysis.smoothing"},
		{name: "bar count", mutate: func(c *Config) { c.Visualizer.BarCount = 4 }, want: "bar_count"},
		{name: "reflection", mutate: func(c *Config) { c.Visualizer.Reflection = "three" }, want: "visualizer.reflection"},
		{name: "direction", mutate: func(c *Config) { c.Particles.Direction = "up" }, want: "particles.direction"},
		{name: "color", mutate: func(c *Config) { c.Text.Author.Color = "red" }, want: "text.author.color"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{in: "#ffffff", want: color.RGBA{255, 255, 255, 255}},
		{in: "#f00", want: color.RGBA{255, 0, 0, 255}},
		{in: " #0000ff ", want: color.RGBA{0, 0, 255, 255}},
		{in: "#ffffff80", want: color.RGBA{128, 128, 128, 128}},
		{in: "#00000000", want: color.RGBA{}},
		{in: "ffffff", wantErr: true},
		{in: "#ggg", wantErr: true},
		{in: "#ffffffzz", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Fatalf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSampleConfigMatchesDefaults(t *testing.T) {
	var cfg Config
	if err := toml.Unmarshal([]byte(SampleConfig()), &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	def := Default()
	if cfg.Output != def.Output || cfg.Analysis != def.Analysis || cfg.Visualizer != def.Visualizer ||
		cfg.Particles != def.Particles || cfg.Text != def.Text || cfg.Logo != def.Logo || cfg.Background != def.Background {
		t.Fatalf("sample config drifted from defaults:\n%+v\n%+v", cfg, def)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatal(err)
	}
	cfg, _, exists, err := Load(path)
	if err != nil || !exists {
		t.Fatalf("Load(sample) = %v, exists=%v", err, exists)
	}
	if cfg.Output.FPS != 30 {
		t.Fatalf("unexpected fps %d", cfg.Output.FPS)
	}
}
