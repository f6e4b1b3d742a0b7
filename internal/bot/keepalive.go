package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/iconidentify/tunegrab/internal/service"
)

// RunKeepAlive logs a heartbeat every interval until ctx is canceled.
// A non-positive interval disables it.
func RunKeepAlive(ctx context.Context, interval time.Duration, stats *service.StatsService, logger *slog.Logger) error {
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			logger.Info("keep-alive ping",
				"downloads", stats.Downloads(),
				"uptime", service.FormatUptime(stats.Uptime()),
			)
		}
	}
}
