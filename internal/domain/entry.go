package domain

// MediaEntry is the metadata of the search result selected for a request.
type MediaEntry struct {
	ID           string
	Title        string
	Uploader     string
	Duration     *int // seconds; nil when the platform did not report one
	URL          string
	ViewCount    *int64
	ThumbnailURL string
}

// TitleOrUnknown returns the entry title, or "Unknown" when it is blank.
func (e *MediaEntry) TitleOrUnknown() string {
	if e == nil || e.Title == "" {
		return UnknownValue
	}
	return e.Title
}

// ArtistOrUnknown returns the uploader, or "Unknown" when it is blank.
func (e *MediaEntry) ArtistOrUnknown() string {
	if e == nil || e.Uploader == "" {
		return UnknownValue
	}
	return e.Uploader
}

// DurationSeconds returns the duration, defaulting to zero.
func (e *MediaEntry) DurationSeconds() int {
	if e == nil || e.Duration == nil || *e.Duration < 0 {
		return 0
	}
	return *e.Duration
}

// Views returns the view count, defaulting to zero.
func (e *MediaEntry) Views() int64 {
	if e == nil || e.ViewCount == nil || *e.ViewCount < 0 {
		return 0
	}
	return *e.ViewCount
}

// HasThumbnail reports whether a thumbnail URL is known.
func (e *MediaEntry) HasThumbnail() bool {
	return e != nil && e.ThumbnailURL != ""
}

// UnknownValue is substituted for missing title and artist.
const UnknownValue = "Unknown"

// DownloadedAudio is the transcoded audio file produced for a request.
type DownloadedAudio struct {
	Path string
	Size int64
}

// Thumbnail holds cover art bytes fetched for a delivery.
type Thumbnail struct {
	Data        []byte
	ContentType string
}
