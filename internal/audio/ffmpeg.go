package audio

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	ffmpegLookPath = exec.LookPath
	ffmpegOutput   = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Stdin = nil
		return cmd.Output()
	}
	mkdirTemp = os.MkdirTemp
	removeAll = os.RemoveAll
	sleep     = time.Sleep
)

const probeTimeout = 10 * time.Second

// ffprobeResult holds parsed ffprobe JSON output.
type ffprobeResult struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

type streamProbe struct {
	sampleRate int
	channels   int
}

// probeAudio uses ffprobe to read the first audio stream's layout.
func probeAudio(ctx context.Context, path string) (*streamProbe, error) {
	ffprobe, err := ffmpegLookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found (required for %s input)", strings.ToLower(filepath.Ext(path)))
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	output, err := ffmpegOutput(ctx, ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var result ffprobeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}
	if len(result.Streams) == 0 {
		return nil, fmt.Errorf("no audio stream found")
	}

	stream := result.Streams[0]
	sr, err := strconv.Atoi(stream.SampleRate)
	if err != nil || sr <= 0 {
		sr = 44100
	}
	channels := stream.Channels
	if channels <= 0 {
		channels = 2
	}
	return &streamProbe{sampleRate: sr, channels: channels}, nil
}

// decodeFFmpeg extracts the first audio stream as interleaved 32-bit float
// PCM at the source rate and channel count.
func decodeFFmpeg(ctx context.Context, path string) (*Signal, error) {
	probe, err := probeAudio(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", path, err)
	}

	ffmpeg, err := ffmpegLookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found (required for %s input)", strings.ToLower(filepath.Ext(path)))
	}

	raw, err := ffmpegOutput(ctx, ffmpeg,
		"-v", "quiet",
		"-i", path,
		"-vn",
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ar", strconv.Itoa(probe.sampleRate),
		"-ac", strconv.Itoa(probe.channels),
		"pipe:1",
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("ffmpeg failed to decode audio: %w", err)
	}

	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return NewSignal(probe.sampleRate, deinterleave(samples, probe.channels))
}

func cleanupTempDirWithRetry(dir string) {
	for attempt := 0; attempt < 5; attempt++ {
		if err := removeAll(dir); err == nil || attempt == 4 {
			return
		}
		sleep(75 * time.Millisecond)
	}
}
