package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/iconidentify/tunegrab/internal/domain"
	"github.com/iconidentify/tunegrab/pkg/ytdlp"
)

// SearchBackend looks up the top result for a free-text query.
type SearchBackend interface {
	Search(ctx context.Context, query string) (*ytdlp.Entry, error)
}

// Searcher adapts a yt-dlp search backend to domain entries.
type Searcher struct {
	backend SearchBackend
}

// NewSearcher creates a new searcher.
func NewSearcher(backend SearchBackend) *Searcher {
	return &Searcher{backend: backend}
}

// Search returns the best-matching entry. It returns domain.ErrNoResults
// when nothing matched and wraps domain.ErrSearchFailed on backend errors.
func (s *Searcher) Search(ctx context.Context, query string) (*domain.MediaEntry, error) {
	entry, err := s.backend.Search(ctx, query)
	if err != nil {
		if errors.Is(err, ytdlp.ErrNoEntries) {
			return nil, domain.ErrNoResults
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrSearchFailed, err)
	}

	me := toMediaEntry(entry)
	if me.URL == "" {
		return nil, fmt.Errorf("%w: entry %q has no url", domain.ErrSearchFailed, entry.ID)
	}
	return me, nil
}

func toMediaEntry(e *ytdlp.Entry) *domain.MediaEntry {
	return &domain.MediaEntry{
		ID:           e.ID,
		Title:        e.Title,
		Uploader:     e.Artist(),
		Duration:     e.DurationSeconds(),
		URL:          e.PageURL(),
		ViewCount:    e.ViewCount,
		ThumbnailURL: e.BestThumbnail(),
	}
}
