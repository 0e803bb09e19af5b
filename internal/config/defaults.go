package config

// Default returns a configuration for a 720p MP4 with a centered
// placeholder logo and a 64-bar visualizer.
func Default() Config {
	return Config{
		Output: Output{
			Width:    1280,
			Height:   720,
			FPS:      30,
			Format:   "mp4",
			Quality:  90,
			CRF:      20,
			Dir:      ".",
			StateDir: "~/.local/state/beatframe",
		},
		Analysis: Analysis{
			FFTSize:      2048,
			BufferLength: 4096,
			Smoothing:    0.8,
			MinDB:        -100,
			MaxDB:        -30,
		},
		Background: Background{
			Zoom:           1,
			Pulse:          1,
			GradientTop:    "#1a1a2e",
			GradientBottom: "#0f3460",
		},
		Logo: Logo{
			X:                0.5,
			Y:                0.42,
			Width:            0.22,
			Bounce:           1,
			PlaceholderColor: "#ffffff",
		},
		Visualizer: Visualizer{
			Color:        "#ffffff",
			Reflection:   "two",
			Sensitivity:  1,
			BarCount:     64,
			BarThickness: 0.02,
			BarMaxHeight: 1,
		},
		Particles: Particles{
			Enabled:   true,
			Count:     60,
			Direction: "top",
			Speed:     1,
			Color:     "#ffffffb4",
			Size:      2,
			Blur:      2,
			Seed:      1,
		},
		Text: Text{
			Main: TextLine{
				Size:  42,
				Color: "#ffffff",
				Bold:  true,
			},
			Author: TextLine{
				Size:  26,
				Color: "#d0d0d0",
			},
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}
