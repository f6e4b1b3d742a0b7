package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoEntries is returned when a search matched nothing.
var ErrNoEntries = errors.New("no entries")

// Entry is one search result as reported by yt-dlp.
type Entry struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Uploader   string      `json:"uploader"`
	Channel    string      `json:"channel"`
	Duration   *float64    `json:"duration"`
	ViewCount  *int64      `json:"view_count"`
	URL        string      `json:"url"`
	WebpageURL string      `json:"webpage_url"`
	Thumbnail  string      `json:"thumbnail"`
	Thumbnails []Thumbnail `json:"thumbnails"`
	IEKey      string      `json:"ie_key"`
}

// Thumbnail is one candidate cover image.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Artist returns the uploader, falling back to the channel name.
func (e *Entry) Artist() string {
	if e.Uploader != "" {
		return e.Uploader
	}
	return e.Channel
}

// PageURL returns the canonical watch URL.
func (e *Entry) PageURL() string {
	if e.WebpageURL != "" {
		return e.WebpageURL
	}
	if strings.HasPrefix(e.URL, "http") {
		return e.URL
	}
	if e.ID != "" && isYouTube(e) {
		return "https://www.youtube.com/watch?v=" + e.ID
	}
	return e.URL
}

// BestThumbnail returns the explicit thumbnail or the largest listed one.
func (e *Entry) BestThumbnail() string {
	if e.Thumbnail != "" {
		return e.Thumbnail
	}
	best := ""
	bestArea := -1
	for _, t := range e.Thumbnails {
		if t.URL == "" {
			continue
		}
		if area := t.Width * t.Height; area > bestArea {
			best = t.URL
			bestArea = area
		}
	}
	return best
}

// DurationSeconds returns the duration truncated to whole seconds.
func (e *Entry) DurationSeconds() *int {
	if e.Duration == nil {
		return nil
	}
	d := int(*e.Duration)
	return &d
}

func isYouTube(e *Entry) bool {
	return e.IEKey == "" || strings.EqualFold(e.IEKey, "Youtube")
}

type searchResult struct {
	Entries []Entry `json:"entries"`
}

// Config configures the yt-dlp client.
type Config struct {
	BinaryPath    string        // Optional, defaults to "yt-dlp" in PATH
	SearchTimeout time.Duration // Optional, defaults to 30 seconds
	Format        string        // Optional, defaults to "bestaudio/best"
}

// Client runs yt-dlp for searches and audio downloads.
type Client struct {
	binary        string
	searchTimeout time.Duration
	format        string
}

// NewClient creates a new yt-dlp client.
func NewClient(cfg Config) *Client {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "yt-dlp"
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = 30 * time.Second
	}
	if cfg.Format == "" {
		cfg.Format = "bestaudio/best"
	}
	return &Client{
		binary:        cfg.BinaryPath,
		searchTimeout: cfg.SearchTimeout,
		format:        cfg.Format,
	}
}

// Available reports whether the yt-dlp binary can be found.
func (c *Client) Available() error {
	if _, err := exec.LookPath(c.binary); err != nil {
		return fmt.Errorf("yt-dlp not found: %w", err)
	}
	return nil
}

// Search returns the top result for query without downloading media.
func (c *Client) Search(ctx context.Context, query string) (*Entry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrNoEntries
	}

	sCtx, cancel := context.WithTimeout(ctx, c.searchTimeout)
	defer cancel()

	out, err := c.run(sCtx, searchArgs(query)...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	return parseSearchOutput(out)
}

func searchArgs(query string) []string {
	return []string{
		"--dump-single-json",
		"--flat-playlist",
		"--no-warnings",
		"--ignore-config",
		"ytsearch1:" + query,
	}
}

func parseSearchOutput(out []byte) (*Entry, error) {
	var result searchResult
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("parse search output: %w", err)
	}
	if len(result.Entries) == 0 {
		return nil, ErrNoEntries
	}
	entry := result.Entries[0]
	return &entry, nil
}

// DownloadAudio downloads the best audio stream of pageURL to
// outputPrefix.<ext> and returns the resulting path. The caller owns the file.
func (c *Client) DownloadAudio(ctx context.Context, pageURL, outputPrefix string) (string, error) {
	if pageURL == "" {
		return "", fmt.Errorf("download: empty url")
	}
	if err := os.MkdirAll(filepath.Dir(outputPrefix), 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	out, err := c.run(ctx, downloadArgs(c.format, pageURL, outputPrefix)...)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}

	path := lastLine(out)
	if path == "" {
		return "", fmt.Errorf("download: yt-dlp reported no output file")
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	return path, nil
}

func downloadArgs(format, pageURL, outputPrefix string) []string {
	return []string{
		"-f", format,
		"--no-playlist",
		"--no-part",
		"--force-overwrites",
		"--ignore-config",
		"-q", "--no-warnings", "--no-progress",
		"--no-simulate",
		"--print", "after_move:filepath",
		"-o", outputPrefix + ".%(ext)s",
		pageURL,
	}
}

// Version returns the yt-dlp version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "--version")
	if err != nil {
		return "", err
	}
	return lastLine(out), nil
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.binary, args...)
	// yt-dlp may leave ffmpeg children holding the pipes after a kill.
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("yt-dlp: %w", ctxErr)
		}
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// lastLine returns the last non-empty line, in case yt-dlp prints extra output.
func lastLine(out []byte) string {
	var last string
	for _, ln := range strings.Split(string(out), "\n") {
		if s := strings.TrimSpace(ln); s != "" {
			last = s
		}
	}
	return last
}
