package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/iconidentify/tunegrab/internal/domain"
	"github.com/iconidentify/tunegrab/internal/service"
	"github.com/iconidentify/tunegrab/internal/telegram"
	"github.com/iconidentify/tunegrab/pkg/ytdlp"
)

// ConnectivityQuery is searched by /test.
const ConnectivityQuery = "test"

// connectivityTimeout bounds a /test search, which runs off the receive loop.
const connectivityTimeout = 45 * time.Second

const helpText = "*Available Commands:*\n\n" +
	"• Type song or artist name to search\n" +
	"• /start - Welcome Message\n" +
	"• /help - Help Commands\n" +
	"• /stats - Bot Statistics\n" +
	"• /test - Check YouTube Connection\n\n" +
	"*Examples:*\n" +
	"`Imagine Dragons Believer`\n" +
	"`Senorita Shawn Mendes`"

const welcomeText = "✨🎶 *Welcome, %s!* 🎶✨\n\n" +
	"I am your *Music Bot*! Send me the name of a song or artist.\n\n" +
	"💬 *Examples:*\n" +
	"`Shape of You - Ed Sheeran`\n" +
	"`Senorita - Shawn Mendes`\n\n" +
	"📜 *Commands:*\n" +
	"• /start - Restart Bot\n" +
	"• /help - See Commands\n" +
	"• /stats - Bot Stats\n" +
	"• /test - YouTube Connection Check\n\n" +
	"🚀 *Created with love by* [Zero Creations](https://t.me/zerocreations)"

// Submitter queues a request for the pipeline.
type Submitter interface {
	Submit(ctx context.Context, req *domain.Request) error
}

// ConnectivityChecker checks that the search backend answers.
type ConnectivityChecker interface {
	Search(ctx context.Context, query string) (*ytdlp.Entry, error)
}

// RouterConfig configures the command router.
type RouterConfig struct {
	WelcomeImage string
}

// Router dispatches inbound messages.
type Router struct {
	channel   telegram.Channel
	stats     *service.StatsService
	submitter Submitter
	checker   ConnectivityChecker
	cfg       RouterConfig
	logger    *slog.Logger
	checks    sync.WaitGroup
}

// NewRouter creates a new router.
func NewRouter(
	channel telegram.Channel,
	stats *service.StatsService,
	submitter Submitter,
	checker ConnectivityChecker,
	cfg RouterConfig,
	logger *slog.Logger,
) *Router {
	return &Router{
		channel:   channel,
		stats:     stats,
		submitter: submitter,
		checker:   checker,
		cfg:       cfg,
		logger:    logger,
	}
}

// Dispatch answers known commands directly and submits any other text as
// a music query.
func (r *Router) Dispatch(ctx context.Context, in Inbound) error {
	switch command(in.Text) {
	case "start":
		return r.handleStart(ctx, in)
	case "help":
		return r.reply(ctx, in.ChatID, helpText)
	case "stats":
		return r.handleStats(ctx, in)
	case "test":
		r.startConnectivityCheck(ctx, in)
		return nil
	}

	query := strings.TrimSpace(in.Text)
	req := domain.NewRequest(in.ChatID, in.MessageID, in.UserName, query)
	if err := r.submitter.Submit(ctx, req); err != nil {
		return fmt.Errorf("submit request: %w", err)
	}
	r.logger.Info("music request queued", "workspace", req.Workspace, "chat_id", in.ChatID, "query", query)
	return nil
}

func (r *Router) handleStart(ctx context.Context, in Inbound) error {
	name := strings.ReplaceAll(in.UserName, "*", "")
	caption := fmt.Sprintf(welcomeText, name)

	if r.cfg.WelcomeImage != "" {
		if err := r.channel.SendChatAction(ctx, in.ChatID, telegram.ActionUploadPhoto); err != nil {
			r.logger.Debug("chat action failed", "error", err)
		}
		err := r.channel.SendPhoto(ctx, in.ChatID, r.cfg.WelcomeImage, caption)
		if err == nil {
			return nil
		}
		r.logger.Warn("welcome photo failed, sending text", "error", err)
	}
	return r.reply(ctx, in.ChatID, caption)
}

func (r *Router) handleStats(ctx context.Context, in Inbound) error {
	text := "📊 *Bot Stats:*\n\n" +
		fmt.Sprintf("🎵 Downloads: *%d*\n", r.stats.Downloads()) +
		fmt.Sprintf("⏱ Uptime: *%s*\n", service.FormatUptime(r.stats.Uptime())) +
		"👤 Created by: @zerocreations"
	return r.reply(ctx, in.ChatID, text)
}

// Wait blocks until every running /test check has replied.
func (r *Router) Wait() {
	r.checks.Wait()
}

// startConnectivityCheck answers /test in the background so a slow search
// does not stall update delivery. The reply outlives a webhook request context.
func (r *Router) startConnectivityCheck(ctx context.Context, in Inbound) {
	r.checks.Add(1)
	go func() {
		defer r.checks.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), connectivityTimeout)
		defer cancel()
		if err := r.handleTest(ctx, in); err != nil {
			r.logger.Error("failed to answer /test", "chat_id", in.ChatID, "error", err)
		}
	}()
}

func (r *Router) handleTest(ctx context.Context, in Inbound) error {
	_, err := r.checker.Search(ctx, ConnectivityQuery)
	switch {
	case err == nil:
		return r.reply(ctx, in.ChatID, "✅ YouTube connection successful!")
	case errors.Is(err, ytdlp.ErrNoEntries):
		return r.reply(ctx, in.ChatID, "⚠️ YouTube connected but no results!")
	default:
		r.logger.Error("connectivity test failed", "error", err)
		detail := strings.ReplaceAll(err.Error(), "`", "'")
		return r.reply(ctx, in.ChatID, fmt.Sprintf("❌ YouTube connection failed.\n\nError: `%s`", detail))
	}
}

func (r *Router) reply(ctx context.Context, chatID int64, text string) error {
	if _, err := r.channel.SendMessage(ctx, chatID, 0, text); err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	return nil
}
