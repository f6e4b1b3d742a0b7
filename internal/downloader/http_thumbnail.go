package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iconidentify/tunegrab/internal/config"
	"github.com/iconidentify/tunegrab/internal/domain"
)

var thumbnailFetches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tunegrab_thumbnail_fetches_total",
	Help: "Thumbnail fetch outcomes.",
}, []string{"result"})

// statusError is returned for non-success HTTP responses.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.code)
}

var errThumbnailTooLarge = errors.New("thumbnail exceeds size limit")

// HTTPThumbnailFetcher implements ThumbnailFetcher using HTTP requests.
type HTTPThumbnailFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	retry     RetryConfig
	cache     *ThumbnailCache
	logger    *slog.Logger
}

// NewHTTPThumbnailFetcher creates a new HTTP-based thumbnail fetcher.
func NewHTTPThumbnailFetcher(cfg config.ThumbnailConfig, cache *ThumbnailCache, logger *slog.Logger) *HTTPThumbnailFetcher {
	retry := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.RetryDelay > 0 {
		retry.InitialDelay = cfg.RetryDelay
	}
	if cfg.MaxRetryDelay > 0 {
		retry.MaxDelay = cfg.MaxRetryDelay
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 * 1024 * 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &HTTPThumbnailFetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBytes,
		retry:     retry,
		cache:     cache,
		logger:    logger,
	}
}

// Fetch retrieves the image at url. Network failures and non-success
// statuses produce an absent result.
func (f *HTTPThumbnailFetcher) Fetch(ctx context.Context, url string) ThumbnailResult {
	if url == "" {
		return Absent("no thumbnail url")
	}

	if t, ok := f.cache.Get(url); ok {
		thumbnailFetches.WithLabelValues("cached").Inc()
		res := Found(t)
		res.Cached = true
		return res
	}

	t, err := RetryWithCheck(ctx, f.retry, func() (domain.Thumbnail, error) {
		return f.fetchOnce(ctx, url)
	}, isRetryableError)
	if err != nil {
		thumbnailFetches.WithLabelValues("absent").Inc()
		f.logger.Debug("thumbnail unavailable", "url", url, "error", err)
		return Absent(err.Error())
	}

	thumbnailFetches.WithLabelValues("fetched").Inc()
	f.cache.Set(url, t)
	return Found(t)
}

func (f *HTTPThumbnailFetcher) fetchOnce(ctx context.Context, url string) (domain.Thumbnail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Thumbnail{}, fmt.Errorf("create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "image/jpeg,image/webp,image/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Thumbnail{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.Thumbnail{}, domain.ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Thumbnail{}, &statusError{code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return domain.Thumbnail{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return domain.Thumbnail{}, errThumbnailTooLarge
	}
	if len(data) == 0 {
		return domain.Thumbnail{}, fmt.Errorf("empty thumbnail body")
	}

	return domain.Thumbnail{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

func isRetryableError(err error) bool {
	if errors.Is(err, domain.ErrRateLimited) {
		return true
	}
	if errors.Is(err, errThumbnailTooLarge) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
