package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iconidentify/tunegrab/internal/api"
	"github.com/iconidentify/tunegrab/internal/api/handler"
	"github.com/iconidentify/tunegrab/internal/bot"
	"github.com/iconidentify/tunegrab/internal/config"
	"github.com/iconidentify/tunegrab/internal/downloader"
	"github.com/iconidentify/tunegrab/internal/media"
	"github.com/iconidentify/tunegrab/internal/service"
	"github.com/iconidentify/tunegrab/internal/telegram"
	"github.com/iconidentify/tunegrab/internal/worker"
	"github.com/iconidentify/tunegrab/pkg/ffmpeg"
	"github.com/iconidentify/tunegrab/pkg/ytdlp"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("tunegrab %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Bootstrap logger until the configured one is known
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting tunegrab",
		"version", Version,
		"build_time", BuildTime,
		"mode", cfg.Telegram.Mode,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Ensure the download directory exists
	if err := os.MkdirAll(cfg.Storage.DownloadPath, 0755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}

	// Media tooling
	ytdlpClient := ytdlp.NewClient(ytdlp.Config{
		BinaryPath:    cfg.Media.YtDLPPath,
		SearchTimeout: cfg.Download.SearchTimeout,
	})
	if err := ytdlpClient.Available(); err != nil {
		logger.Warn("yt-dlp is not available, searches will fail", "error", err)
	}
	processor, err := ffmpeg.NewAudioProcessor(cfg.Media.FFmpegPath, cfg.Media.FFprobePath)
	if err != nil {
		return fmt.Errorf("init ffmpeg: %w", err)
	}

	logMediaVersions(ytdlpClient, processor, logger)

	searcher := media.NewSearcher(ytdlpClient)
	fetcher := media.NewFetcher(ytdlpClient, processor, media.FetcherConfig{
		Timeout: cfg.Download.Timeout,
		Bitrate: cfg.Media.AudioBitrate,
	}, logger)
	thumbs := downloader.NewHTTPThumbnailFetcher(
		cfg.Thumbnail,
		downloader.NewThumbnailCache(cfg.Thumbnail.CacheSize, cfg.Thumbnail.CacheTTL),
		logger,
	)

	// Telegram
	botAPI, err := telegram.NewBotAPI(cfg.Telegram, logger)
	if err != nil {
		return fmt.Errorf("init telegram bot: %w", err)
	}
	channel := telegram.NewBotChannel(botAPI, logger)

	// Services
	stats := service.NewStatsService()
	events, err := service.NewEventService(service.EventServiceConfig{
		RingBufferSize: cfg.Events.RingBufferSize,
		SQLitePath:     cfg.Events.SQLitePath,
		RetentionDays:  cfg.Events.RetentionDays,
	}, logger)
	if err != nil {
		return fmt.Errorf("init event service: %w", err)
	}
	defer events.Close()

	pipeline := service.NewPipeline(
		searcher,
		fetcher,
		thumbs,
		channel,
		stats,
		events,
		service.PipelineConfig{
			DownloadDir: cfg.Storage.DownloadPath,
			Signature:   cfg.Telegram.Signature,
		},
		logger,
	)

	// Initialize worker pool
	pool := worker.NewPool(worker.Config{
		Workers:   cfg.Worker.Count,
		QueueSize: cfg.Worker.QueueSize,
	}, pipeline, logger)
	pool.Start()

	router := bot.NewRouter(channel, stats, pool, ytdlpClient, bot.RouterConfig{
		WelcomeImage: cfg.Telegram.WelcomeImage,
	}, logger)

	// HTTP surface
	routerCfg := api.RouterConfig{
		Health: handler.NewHealthHandler(stats, pool, map[string]handler.Checker{
			"yt-dlp": ytdlpClient,
			"ffmpeg": processor,
		}, cfg.Storage.DownloadPath),
		Events: handler.NewEventHandler(events, logger),
		APIKey: cfg.Server.APIKey,
		Logger: logger,
	}
	if cfg.Telegram.Mode == config.ModeWebhook {
		routerCfg.Webhook = handler.NewWebhookHandler(router, cfg.Telegram.Secret(), logger)
		routerCfg.WebhookPath = cfg.Telegram.WebhookPath
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      api.NewRouter(routerCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return receiveUpdates(gctx, cfg, botAPI, router, logger)
	})

	g.Go(func() error {
		return bot.RunKeepAlive(gctx, cfg.Server.KeepAliveInterval, stats, logger)
	})

	g.Go(func() error {
		cleanupEvents(gctx, events, logger)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		// Stop accepting new requests
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}

		// Stop workers (allow in-flight requests to complete)
		if err := pool.Stop(25 * time.Second); err != nil {
			logger.Error("worker pool shutdown error", "error", err)
		}
		router.Wait()
		return nil
	})

	return g.Wait()
}

// receiveUpdates runs the long-polling loop, or registers the webhook and
// waits for shutdown.
func receiveUpdates(ctx context.Context, cfg *config.Config, botAPI telegram.API, dispatcher bot.Dispatcher, logger *slog.Logger) error {
	if cfg.Telegram.Mode == config.ModeWebhook {
		if err := telegram.SetWebhook(botAPI, cfg.Telegram.WebhookURL()); err != nil {
			return fmt.Errorf("set webhook: %w", err)
		}
		// The full URL carries the secret.
		logger.Info("webhook registered", "app_url", cfg.Telegram.AppURL, "path", cfg.Telegram.WebhookPath)
		<-ctx.Done()
		return nil
	}

	if err := telegram.RemoveWebhook(botAPI); err != nil {
		logger.Warn("failed to remove webhook", "error", err)
	}
	return bot.NewPoller(botAPI, dispatcher, cfg.Telegram.PollTimeout, logger).Run(ctx)
}

func logMediaVersions(ytdlpClient *ytdlp.Client, processor *ffmpeg.AudioProcessor, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	attrs := []any{}
	if v, err := ytdlpClient.Version(ctx); err == nil {
		attrs = append(attrs, "ytdlp_version", v)
	}
	if v, err := processor.Version(ctx); err == nil {
		attrs = append(attrs, "ffmpeg_version", v)
	}
	logger.Info("media tools resolved", attrs...)
}

func cleanupEvents(ctx context.Context, events *service.EventService, logger *slog.Logger) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := events.CleanupOldEvents(ctx); err != nil {
				logger.Warn("event cleanup failed", "error", err)
			}
		}
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
