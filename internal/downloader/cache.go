package downloader

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iconidentify/tunegrab/internal/domain"
)

var (
	thumbnailCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tunegrab_thumbnail_cache_hits_total",
		Help: "Thumbnail lookups served from the in-memory cache.",
	})
	thumbnailCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tunegrab_thumbnail_cache_misses_total",
		Help: "Thumbnail lookups that required an HTTP fetch.",
	})
)

// ThumbnailCache is an LRU of thumbnail bytes keyed by URL with a TTL.
// A nil cache is valid and never hits.
type ThumbnailCache struct {
	lru *expirable.LRU[string, domain.Thumbnail]
}

// NewThumbnailCache returns nil when size is not positive.
func NewThumbnailCache(size int, ttl time.Duration) *ThumbnailCache {
	if size <= 0 {
		return nil
	}
	return &ThumbnailCache{lru: expirable.NewLRU[string, domain.Thumbnail](size, nil, ttl)}
}

// Get returns the cached thumbnail for url.
func (c *ThumbnailCache) Get(url string) (domain.Thumbnail, bool) {
	if c == nil {
		return domain.Thumbnail{}, false
	}
	t, ok := c.lru.Get(url)
	if ok {
		thumbnailCacheHits.Inc()
		return t, true
	}
	thumbnailCacheMisses.Inc()
	return domain.Thumbnail{}, false
}

// Set stores a thumbnail.
func (c *ThumbnailCache) Set(url string, t domain.Thumbnail) {
	if c == nil {
		return
	}
	c.lru.Add(url, t)
}

// Len returns the number of cached entries.
func (c *ThumbnailCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
