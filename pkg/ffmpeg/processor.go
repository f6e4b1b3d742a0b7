package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoAudioStream is returned when the input has no audio track.
var ErrNoAudioStream = errors.New("input has no audio stream")

// AudioProcessor probes and transcodes audio using ffmpeg and ffprobe.
type AudioProcessor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewAudioProcessor resolves the ffmpeg and ffprobe binaries.
// Bare names are looked up in PATH.
func NewAudioProcessor(ffmpegBin, ffprobeBin string) (*AudioProcessor, error) {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}

	ffmpegPath, err := exec.LookPath(ffmpegBin)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	ffprobePath, err := exec.LookPath(ffprobeBin)
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found: %w", err)
	}

	return &AudioProcessor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}, nil
}

// AudioInfo contains metadata about a media file.
type AudioInfo struct {
	Duration   float64 // seconds
	HasAudio   bool
	AudioCodec string
	Bitrate    int64
	SampleRate int
	Channels   int
	FileSize   int64
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
}

type ffprobeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

// Probe extracts stream metadata from a media file.
func (p *AudioProcessor) Probe(ctx context.Context, path string) (*AudioInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	info, err := parseProbeOutput(output)
	if err != nil {
		return nil, err
	}
	info.FileSize = stat.Size()
	return info, nil
}

func parseProbeOutput(output []byte) (*AudioInfo, error) {
	var parsed ffprobeOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &AudioInfo{}
	if parsed.Format.Duration != "" {
		if dur, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
			info.Duration = dur
		}
	}
	if parsed.Format.BitRate != "" {
		if br, err := strconv.ParseInt(parsed.Format.BitRate, 10, 64); err == nil {
			info.Bitrate = br
		}
	}

	for _, s := range parsed.Streams {
		if s.CodecType != "audio" || info.HasAudio {
			continue
		}
		info.HasAudio = true
		info.AudioCodec = s.CodecName
		info.Channels = s.Channels
		if sr, err := strconv.Atoi(s.SampleRate); err == nil {
			info.SampleRate = sr
		}
	}

	return info, nil
}

// TranscodeConfig configures audio transcoding.
type TranscodeConfig struct {
	OutputPath string // Path for output audio file
	Bitrate    string // Audio bitrate (default: "192k")
}

// Transcode converts the audio track of inputPath to MP3.
// An existing output file is overwritten.
func (p *AudioProcessor) Transcode(ctx context.Context, inputPath string, cfg TranscodeConfig) (*AudioInfo, error) {
	if cfg.Bitrate == "" {
		cfg.Bitrate = "192k"
	}
	if cfg.OutputPath == "" {
		return nil, fmt.Errorf("output path is required")
	}

	info, err := p.Probe(ctx, inputPath)
	if err != nil {
		return nil, fmt.Errorf("probe input: %w", err)
	}
	if !info.HasAudio {
		return nil, ErrNoAudioStream
	}

	if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.ffmpegPath, transcodeArgs(inputPath, cfg)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("transcode audio: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	// Probe the output; the input container duration can be missing.
	out, err := p.Probe(ctx, cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("probe output: %w", err)
	}
	if out.Duration == 0 {
		out.Duration = info.Duration
	}
	return out, nil
}

func transcodeArgs(inputPath string, cfg TranscodeConfig) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", inputPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", cfg.Bitrate,
		"-y", cfg.OutputPath,
	}
}

// CleanupTempFiles removes temporary files created during processing.
func CleanupTempFiles(paths ...string) {
	for _, path := range paths {
		os.Remove(path)
	}
}

// Available reports whether the resolved binaries are still present.
func (p *AudioProcessor) Available() error {
	for _, bin := range []string{p.ffmpegPath, p.ffprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s unavailable: %w", filepath.Base(bin), err)
		}
	}
	return nil
}

// Version returns the first line of `ffmpeg -version`.
func (p *AudioProcessor) Version(ctx context.Context) (string, error) {
	output, err := exec.CommandContext(ctx, p.ffmpegPath, "-version").Output()
	if err != nil {
		return "", err
	}
	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		return strings.TrimSpace(lines[0]), nil
	}
	return "unknown", nil
}
