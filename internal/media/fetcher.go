package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/iconidentify/tunegrab/internal/domain"
	"github.com/iconidentify/tunegrab/pkg/ffmpeg"
)

// AudioExtension is the extension of every delivered audio file.
const AudioExtension = ".mp3"

// AudioDownloader downloads the best audio stream for a page URL.
type AudioDownloader interface {
	DownloadAudio(ctx context.Context, pageURL, outputPrefix string) (string, error)
}

// Transcoder converts an audio source to the delivery format.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath string, cfg ffmpeg.TranscodeConfig) (*ffmpeg.AudioInfo, error)
}

// FetcherConfig configures the audio fetcher.
type FetcherConfig struct {
	Timeout time.Duration
	Bitrate string
}

// Fetcher downloads and transcodes audio for an already resolved entry.
type Fetcher struct {
	downloader AudioDownloader
	transcoder Transcoder
	cfg        FetcherConfig
	logger     *slog.Logger
}

// NewFetcher creates a new audio fetcher.
func NewFetcher(dl AudioDownloader, tc Transcoder, cfg FetcherConfig, logger *slog.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.Bitrate == "" {
		cfg.Bitrate = "192k"
	}
	return &Fetcher{
		downloader: dl,
		transcoder: tc,
		cfg:        cfg,
		logger:     logger,
	}
}

// Fetch writes the entry's audio to outputPrefix+".mp3", overwriting any
// previous file. Errors wrap domain.ErrDownloadFailed.
func (f *Fetcher) Fetch(ctx context.Context, entry *domain.MediaEntry, outputPrefix string) (*domain.DownloadedAudio, error) {
	if entry == nil || entry.URL == "" {
		return nil, fmt.Errorf("%w: entry has no url", domain.ErrDownloadFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	start := time.Now()
	src, err := f.downloader.DownloadAudio(ctx, entry.URL, outputPrefix+".source")
	if err != nil {
		return nil, f.wrap(ctx, "download", err)
	}
	defer ffmpeg.CleanupTempFiles(src)

	outPath := outputPrefix + AudioExtension
	info, err := f.transcoder.Transcode(ctx, src, ffmpeg.TranscodeConfig{
		OutputPath: outPath,
		Bitrate:    f.cfg.Bitrate,
	})
	if err != nil {
		ffmpeg.CleanupTempFiles(outPath)
		return nil, f.wrap(ctx, "transcode", err)
	}

	stat, err := os.Stat(outPath)
	if err != nil {
		return nil, f.wrap(ctx, "stat output", err)
	}

	f.logger.Debug("audio fetched",
		"entry_id", entry.ID,
		"path", outPath,
		"size", stat.Size(),
		"duration", info.Duration,
		"elapsed", time.Since(start),
	)

	return &domain.DownloadedAudio{
		Path: outPath,
		Size: stat.Size(),
	}, nil
}

func (f *Fetcher) wrap(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", domain.ErrDownloadFailed, op, domain.ErrDownloadTimeout)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrDownloadFailed, op, err)
}
