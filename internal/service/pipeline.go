package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iconidentify/tunegrab/internal/domain"
	"github.com/iconidentify/tunegrab/internal/downloader"
	"github.com/iconidentify/tunegrab/internal/telegram"
)

// Texts shown in the status message.
const (
	TextSearching     = "🔎 Searching for: *%s*"
	TextNoResults     = "⚠️ No results found. Try another search."
	TextFound         = "🎶 Found! Downloading audio..."
	TextTooLarge      = "⚠️ Audio file too large (>50MB). Try a shorter song."
	TextGenericFailed = "⚠️ *Oops! Something went wrong.*\nPlease try searching for a different song name."
)

// statusEditTimeout bounds a terminal status edit.
const statusEditTimeout = 10 * time.Second

// DefaultSignature closes every audio caption unless configured otherwise.
const DefaultSignature = "Powered by @zerocreations"

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunegrab_requests_total",
		Help: "Fulfillment requests by outcome.",
	}, []string{"outcome"})
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tunegrab_request_duration_seconds",
		Help:    "Time from receipt to terminal state.",
		Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160, 320},
	}, []string{"outcome"})
)

// Searcher resolves a free-text query to the top matching entry.
type Searcher interface {
	Search(ctx context.Context, query string) (*domain.MediaEntry, error)
}

// AudioFetcher downloads and transcodes audio for a resolved entry to
// outputPrefix + ".mp3".
type AudioFetcher interface {
	Fetch(ctx context.Context, entry *domain.MediaEntry, outputPrefix string) (*domain.DownloadedAudio, error)
}

// PipelineConfig configures the fulfillment pipeline.
type PipelineConfig struct {
	DownloadDir string
	Signature   string
	// MinFreeBytes is the free space required before downloading.
	// Zero means MaxAudioSize; negative disables the check.
	MinFreeBytes int64
}

// Pipeline turns one inbound query into a delivered audio file.
type Pipeline struct {
	searcher  Searcher
	fetcher   AudioFetcher
	thumbs    downloader.ThumbnailFetcher
	channel   telegram.Channel
	stats     *StatsService
	events    domain.EventEmitter
	cfg       PipelineConfig
	logger    *slog.Logger
	freeSpace func(string) int64
}

// NewPipeline creates a new pipeline. events may be nil.
func NewPipeline(
	searcher Searcher,
	fetcher AudioFetcher,
	thumbs downloader.ThumbnailFetcher,
	channel telegram.Channel,
	stats *StatsService,
	events domain.EventEmitter,
	cfg PipelineConfig,
	logger *slog.Logger,
) *Pipeline {
	if cfg.Signature == "" {
		cfg.Signature = DefaultSignature
	}
	if cfg.MinFreeBytes == 0 {
		cfg.MinFreeBytes = MaxAudioSize
	}
	return &Pipeline{
		searcher:  searcher,
		fetcher:   fetcher,
		thumbs:    thumbs,
		channel:   channel,
		stats:     stats,
		events:    events,
		cfg:       cfg,
		logger:    logger,
		freeSpace: freeDiskSpace,
	}
}

// execution carries the mutable state of one Handle call.
type execution struct {
	req    *domain.Request
	stage  domain.Stage
	status domain.StatusHandle
	entry  *domain.MediaEntry
	logger *slog.Logger
}

// Handle runs the request to a terminal state. The status message is
// deleted on success and left showing the failure otherwise. Every file
// created for the request is removed before Handle returns. The returned
// error describes a failed request; the user has already been told.
func (p *Pipeline) Handle(ctx context.Context, req *domain.Request) (err error) {
	start := time.Now()
	ex := &execution{
		req:    req,
		stage:  domain.StageIdle,
		logger: p.logger.With("workspace", req.Workspace, "chat_id", req.ChatID),
	}

	defer func() {
		if r := recover(); r != nil {
			err = domain.NewPipelineError(req.Workspace, ex.stage, fmt.Errorf("panic: %v", r))
			p.fail(ctx, ex, err)
		}
		p.finish(ex, start, err)
	}()

	ex.stage = domain.StageSearching
	if err := p.channel.SendChatAction(ctx, req.ChatID, telegram.ActionTyping); err != nil {
		ex.logger.Debug("chat action failed", "error", err)
	}

	statusText := fmt.Sprintf(TextSearching, strings.ReplaceAll(req.Query, "*", ""))
	msgID, err := p.channel.SendMessage(ctx, req.ChatID, req.MessageID, statusText)
	if err != nil {
		ex.logger.Error("failed to send status message", "error", err)
		return domain.NewPipelineError(req.Workspace, ex.stage, fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err))
	}
	ex.status = domain.StatusHandle{ChatID: req.ChatID, MessageID: msgID}

	ws, err := NewWorkspace(p.cfg.DownloadDir, req.Workspace, ex.logger)
	if err != nil {
		err = domain.NewPipelineError(req.Workspace, ex.stage, fmt.Errorf("create workspace: %w", err))
		p.fail(ctx, ex, err)
		return err
	}
	defer ws.Cleanup()

	entry, err := p.searcher.Search(ctx, req.Query)
	if err != nil {
		if !errors.Is(err, domain.ErrNoResults) {
			ex.logger.Error("search failed", "query", req.Query, "error", err)
		}
		p.settle(ctx, ex, TextNoResults)
		return domain.NewPipelineError(req.Workspace, ex.stage, err)
	}
	ex.entry = entry

	ex.stage = domain.StageDownloading
	p.edit(ctx, ex, TextFound)
	if err := p.channel.SendChatAction(ctx, req.ChatID, telegram.ActionUploadAudio); err != nil {
		ex.logger.Debug("chat action failed", "error", err)
	}

	if err := p.checkFreeSpace(); err != nil {
		return p.failWith(ctx, ex, err)
	}

	audio, err := p.fetcher.Fetch(ctx, entry, ws.Prefix())
	if err != nil {
		return p.failWith(ctx, ex, err)
	}

	ex.stage = domain.StageSizeChecking
	if _, err := CheckSize(audio.Path); err != nil {
		if errors.Is(err, domain.ErrTooLarge) {
			ex.logger.Info("audio exceeds delivery ceiling", "path", audio.Path, "error", err)
			p.settle(ctx, ex, TextTooLarge)
			return domain.NewPipelineError(req.Workspace, ex.stage, err)
		}
		return p.failWith(ctx, ex, err)
	}

	title := domain.SanitizeFilename(entry.TitleOrUnknown())
	artist := entry.ArtistOrUnknown()

	ex.stage = domain.StageThumbnailOptional
	thumbPath := p.saveThumbnail(ctx, ex, ws)

	ex.stage = domain.StageDelivering
	err = p.channel.SendAudio(ctx, telegram.AudioMessage{
		ChatID:    req.ChatID,
		Path:      audio.Path,
		FileName:  title + ".mp3",
		Title:     title,
		Performer: artist,
		Duration:  entry.DurationSeconds(),
		Caption:   BuildCaption(entry, req.UserName, p.cfg.Signature),
		ThumbPath: thumbPath,
	})
	if err != nil {
		return p.failWith(ctx, ex, fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err))
	}

	if err := p.channel.DeleteMessage(ctx, ex.status.ChatID, ex.status.MessageID); err != nil {
		ex.logger.Warn("failed to delete status message", "error", err)
	}
	p.stats.RecordDelivery()
	ex.stage = domain.StageDone
	return nil
}

func (p *Pipeline) checkFreeSpace() error {
	if p.cfg.MinFreeBytes < 0 {
		return nil
	}
	// zero means the platform could not report free space
	free := p.freeSpace(p.cfg.DownloadDir)
	if free > 0 && free < p.cfg.MinFreeBytes {
		return fmt.Errorf("%w: %d bytes free", domain.ErrStorageFull, free)
	}
	return nil
}

// saveThumbnail writes the cover art to the workspace and returns its
// path, or "" when there is none.
func (p *Pipeline) saveThumbnail(ctx context.Context, ex *execution, ws *Workspace) string {
	if p.thumbs == nil || !ex.entry.HasThumbnail() {
		return ""
	}

	res := p.thumbs.Fetch(ctx, ex.entry.ThumbnailURL)
	if !res.Present {
		ex.logger.Debug("continuing without thumbnail", "reason", res.Reason)
		return ""
	}

	if err := os.WriteFile(ws.ThumbPath(), res.Thumbnail.Data, 0644); err != nil {
		ex.logger.Warn("failed to write thumbnail", "error", err)
		return ""
	}
	return ws.ThumbPath()
}

func (p *Pipeline) edit(ctx context.Context, ex *execution, text string) {
	if err := p.channel.EditMessageText(ctx, ex.status.ChatID, ex.status.MessageID, text); err != nil {
		ex.logger.Warn("failed to update status message", "stage", ex.stage, "error", err)
	}
}

// settle writes a terminal status text. It still runs when ctx has been
// canceled so the status never stays on a progress text.
func (p *Pipeline) settle(ctx context.Context, ex *execution, text string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusEditTimeout)
	defer cancel()
	p.edit(ctx, ex, text)
}

func (p *Pipeline) failWith(ctx context.Context, ex *execution, err error) error {
	err = domain.NewPipelineError(ex.req.Workspace, ex.stage, err)
	p.fail(ctx, ex, err)
	return err
}

func (p *Pipeline) fail(ctx context.Context, ex *execution, err error) {
	ex.logger.Error("music request failed", "query", ex.req.Query, "stage", ex.stage, "error", err)
	if ex.status.MessageID != 0 {
		p.settle(ctx, ex, TextGenericFailed)
	}
}

func (p *Pipeline) finish(ex *execution, start time.Time, err error) {
	outcome := outcomeOf(err)
	elapsed := time.Since(start)
	requestsTotal.WithLabelValues(string(outcome)).Inc()
	requestDuration.WithLabelValues(string(outcome)).Observe(elapsed.Seconds())

	if p.events == nil {
		return
	}
	event := domain.Event{
		Workspace:  ex.req.Workspace,
		ChatID:     ex.req.ChatID,
		Query:      ex.req.Query,
		Outcome:    outcome,
		Stage:      domain.StageDone,
		DurationMs: elapsed.Milliseconds(),
	}
	if ex.entry != nil {
		event.Title = ex.entry.TitleOrUnknown()
	}
	if err != nil {
		event.Stage = domain.StageFailed
		event.FailedAt = ex.stage
		event.Error = err.Error()
	}
	p.events.Emit(event)
}

func outcomeOf(err error) domain.Outcome {
	switch {
	case err == nil:
		return domain.OutcomeDelivered
	case errors.Is(err, domain.ErrTooLarge):
		return domain.OutcomeTooLarge
	case errors.Is(err, domain.ErrNoResults), errors.Is(err, domain.ErrSearchFailed):
		return domain.OutcomeNoResults
	default:
		return domain.OutcomeFailed
	}
}

// BuildCaption formats the Markdown caption attached to a delivered track.
func BuildCaption(entry *domain.MediaEntry, userName, signature string) string {
	title := domain.SanitizeFilename(entry.TitleOrUnknown())
	artist := strings.ReplaceAll(entry.ArtistOrUnknown(), "_", " ")

	var b strings.Builder
	fmt.Fprintf(&b, "🎵 *%s*\n", title)
	fmt.Fprintf(&b, "👤 _%s_\n", artist)
	fmt.Fprintf(&b, "⏱ %s\n", domain.FormatDuration(entry.DurationSeconds()))
	fmt.Fprintf(&b, "👁 %s views\n\n", domain.FormatViews(entry.Views()))
	if entry.URL != "" {
		fmt.Fprintf(&b, "[YouTube Link](%s)\n\n", entry.URL)
	}
	fmt.Fprintf(&b, "Enjoy, %s! 🎧", telegram.EscapeMarkdown(userName))
	if signature != "" {
		fmt.Fprintf(&b, "\n\n%s", telegram.EscapeMarkdown(signature))
	}
	return b.String()
}
