package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

// ErrUnsupported is returned for extensions no decoder handles.
var ErrUnsupported = errors.New("unsupported audio format")

var nativeExts = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".ogg":  true,
}

var containerExts = map[string]bool{
	".aac":  true,
	".m4a":  true,
	".m4b":  true,
	".opus": true,
	".webm": true,
	".mp4":  true,
	".mkv":  true,
}

// IsSupportedExt reports whether the extension can be decoded, natively or
// through ffmpeg.
func IsSupportedExt(ext string) bool {
	ext = strings.ToLower(ext)
	return nativeExts[ext] || containerExts[ext]
}

// SupportedExtsList returns a human-readable list of decodable formats.
func SupportedExtsList() string {
	return ".mp3, .wav, .flac, .ogg, .aac, .m4a, .m4b, .opus, .webm, .mp4, .mkv"
}

// Decode reads the whole file at path into a Signal.
func Decode(ctx context.Context, path string) (*Signal, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if containerExts[ext] {
		return decodeFFmpeg(ctx, path)
	}
	if !nativeExts[ext] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening audio: %w", err)
	}
	defer f.Close()
	return decodeNative(ctx, ext, f)
}

// DecodeBytes decodes an in-memory upload. The name only supplies the
// extension.
func DecodeBytes(ctx context.Context, name string, data []byte) (*Signal, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if nativeExts[ext] {
		return decodeNative(ctx, ext, bytes.NewReader(data))
	}
	if !containerExts[ext] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}

	tmp, err := mkdirTemp("", "beatframe-upload-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer cleanupTempDirWithRetry(tmp)

	path := filepath.Join(tmp, "upload"+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("spooling upload: %w", err)
	}
	return decodeFFmpeg(ctx, path)
}

func decodeNative(ctx context.Context, ext string, r io.ReadSeeker) (*Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch ext {
	case ".mp3":
		return decodeMP3(ctx, r)
	case ".wav":
		return decodeWAV(r)
	case ".flac":
		return decodeFLAC(ctx, r)
	case ".ogg":
		return decodeOGG(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
}

// --- MP3 ---

// go-mp3 always produces 16-bit little-endian stereo.
func decodeMP3(ctx context.Context, r io.Reader) (*Signal, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("decoding MP3: %w", err)
	}

	var samples []float32
	if n := dec.Length(); n > 0 {
		samples = make([]float32, 0, n/2)
	}
	buf := make([]byte, 16*1024)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := dec.Read(buf)
		for i := 0; i+1 < n; i += 2 {
			s := int16(binary.LittleEndian.Uint16(buf[i:]))
			samples = append(samples, float32(s)/32768)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding MP3: %w", err)
		}
	}
	return NewSignal(dec.SampleRate(), deinterleave(samples, 2))
}

// --- WAV ---

func decodeWAV(r io.ReadSeeker) (*Signal, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}

	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	if channels <= 0 {
		return nil, fmt.Errorf("invalid WAV channel count: %d", channels)
	}

	var scale float32
	offset := 0
	switch bitDepth {
	case 8:
		// 8-bit WAV is unsigned
		scale, offset = 128, 128
	case 16:
		scale = 32768
	case 24:
		scale = 8388608
	case 32:
		scale = 2147483648
	default:
		return nil, fmt.Errorf("unsupported WAV bit depth: %d", bitDepth)
	}

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v-offset) / scale
	}
	return NewSignal(int(dec.SampleRate), deinterleave(samples, channels))
}

// --- FLAC ---

func decodeFLAC(ctx context.Context, r io.Reader) (*Signal, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("decoding FLAC: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	scale := float32(int64(1) << (info.BitsPerSample - 1))

	out := make([][]float32, channels)
	for ch := range out {
		out[ch] = make([]float32, 0, info.NSamples)
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding FLAC frame: %w", err)
		}
		for ch := 0; ch < channels; ch++ {
			for _, s := range frame.Subframes[ch].Samples {
				out[ch] = append(out[ch], float32(s)/scale)
			}
		}
	}
	return NewSignal(int(info.SampleRate), out)
}

// --- OGG Vorbis ---

func decodeOGG(r io.Reader) (*Signal, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decoding OGG: %w", err)
	}
	if format.Channels <= 0 {
		return nil, fmt.Errorf("invalid OGG channel count: %d", format.Channels)
	}
	return NewSignal(format.SampleRate, deinterleave(samples, format.Channels))
}
