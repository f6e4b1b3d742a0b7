package downloader

import (
	"context"

	"github.com/iconidentify/tunegrab/internal/domain"
)

// ThumbnailFetcher retrieves cover art. It never fails: problems are
// reported as an absent result.
type ThumbnailFetcher interface {
	Fetch(ctx context.Context, url string) ThumbnailResult
}

// ThumbnailResult is the optional outcome of a thumbnail fetch.
type ThumbnailResult struct {
	Thumbnail domain.Thumbnail
	Present   bool
	Cached    bool
	Reason    string // why the thumbnail is absent
}

// Found wraps fetched thumbnail bytes.
func Found(t domain.Thumbnail) ThumbnailResult {
	return ThumbnailResult{Thumbnail: t, Present: true}
}

// Absent reports a missing thumbnail with the reason.
func Absent(reason string) ThumbnailResult {
	return ThumbnailResult{Reason: reason}
}
