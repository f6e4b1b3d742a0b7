package api

import (
	"log/slog"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iconidentify/tunegrab/internal/api/handler"
	mw "github.com/iconidentify/tunegrab/internal/api/middleware"
)

// RouterConfig holds everything the HTTP surface serves.
type RouterConfig struct {
	Health  *handler.HealthHandler
	Events  *handler.EventHandler
	Webhook *handler.WebhookHandler // nil in polling mode
	// WebhookPath is the prefix Telegram posts updates under when Webhook
	// is set. The secret segment follows it.
	WebhookPath string
	APIKey      string
	Logger      *slog.Logger
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath) // Normalize paths (e.g., //ready -> /ready)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(cfg.Logger))
	r.Use(mw.Recovery(cfg.Logger))
	r.Use(mw.Metrics)

	// Uptime pings hit / with both GET and HEAD.
	r.Get("/", cfg.Health.Index)
	r.Head("/", cfg.Health.Index)

	// Health endpoints (no auth)
	r.Get("/health", cfg.Health.Live)
	r.Get("/ready", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	if cfg.Webhook != nil && cfg.WebhookPath != "" {
		hook := strings.TrimSuffix(cfg.WebhookPath, "/") + "/{secret}"
		r.With(middleware.Timeout(30*time.Second)).Post(hook, cfg.Webhook.Receive)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.APIKey != "" {
			r.Use(mw.APIKeyAuth(cfg.APIKey))
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/stats", cfg.Health.Stats)
			if cfg.Events != nil {
				r.Get("/events", cfg.Events.List)
				r.Get("/events/stats", cfg.Events.Stats)
			}
		})

		// Long-lived, so outside the timeout group.
		if cfg.Events != nil {
			r.Get("/events/stream", cfg.Events.Stream)
		}
	})

	return r
}
