package bot

import (
	"context"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iconidentify/tunegrab/internal/telegram"
)

// Dispatcher handles one inbound message.
type Dispatcher interface {
	Dispatch(ctx context.Context, in Inbound) error
}

// Poller receives updates with long polling.
type Poller struct {
	api        telegram.API
	dispatcher Dispatcher
	timeout    int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewPoller creates a poller. timeout is the long-poll timeout in seconds.
func NewPoller(api telegram.API, dispatcher Dispatcher, timeout int, logger *slog.Logger) *Poller {
	if timeout <= 0 {
		timeout = 60
	}
	return &Poller{
		api:        api,
		dispatcher: dispatcher,
		timeout:    timeout,
		retryDelay: 3 * time.Second,
		logger:     logger,
	}
}

type pollResult struct {
	updates []tgbotapi.Update
	err     error
}

// Run polls until ctx is canceled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("long polling started", "timeout_seconds", p.timeout)

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = p.timeout
	cfg.AllowedUpdates = []string{"message"}

	for {
		results := make(chan pollResult, 1)
		go func(cfg tgbotapi.UpdateConfig) {
			updates, err := p.api.GetUpdates(cfg)
			results <- pollResult{updates: updates, err: err}
		}(cfg)

		var res pollResult
		select {
		case <-ctx.Done():
			p.logger.Info("long polling stopped")
			return nil
		case res = <-results:
		}

		if res.err != nil {
			p.logger.Warn("failed to get updates, retrying", "error", res.err, "retry_in", p.retryDelay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.retryDelay):
			}
			continue
		}

		for _, update := range res.updates {
			if update.UpdateID >= cfg.Offset {
				cfg.Offset = update.UpdateID + 1
			}
			p.handle(ctx, update)
		}
	}
}

func (p *Poller) handle(ctx context.Context, update tgbotapi.Update) {
	in, ok := FromUpdate(update)
	if !ok {
		return
	}
	if err := p.dispatcher.Dispatch(ctx, in); err != nil {
		p.logger.Error("failed to dispatch message", "update_id", update.UpdateID, "chat_id", in.ChatID, "error", err)
	}
}
