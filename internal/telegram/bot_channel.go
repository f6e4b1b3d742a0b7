package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iconidentify/tunegrab/internal/config"
)

// API is the subset of *tgbotapi.BotAPI used by this package.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// NewBotAPI authenticates against Telegram and routes library logging through logger.
func NewBotAPI(cfg config.TelegramConfig, logger *slog.Logger) (*tgbotapi.BotAPI, error) {
	if err := tgbotapi.SetLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug)); err != nil {
		return nil, fmt.Errorf("set telegram logger: %w", err)
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	api.Debug = cfg.Debug

	logger.Info("authorized on telegram", "username", api.Self.UserName)
	return api, nil
}

// BotChannel implements Channel on top of the Bot API. Messages use
// legacy Markdown formatting.
type BotChannel struct {
	api    API
	logger *slog.Logger
}

// NewBotChannel creates a channel backed by api.
func NewBotChannel(api API, logger *slog.Logger) *BotChannel {
	return &BotChannel{api: api, logger: logger}
}

// SendChatAction shows a transient activity indicator.
func (c *BotChannel) SendChatAction(ctx context.Context, chatID int64, action string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewChatAction(chatID, action)); err != nil {
		return fmt.Errorf("send chat action: %w", err)
	}
	return nil
}

// SendMessage sends a Markdown message and returns its ID.
func (c *BotChannel) SendMessage(ctx context.Context, chatID int64, replyTo int, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	if replyTo != 0 {
		msg.ReplyToMessageID = replyTo
	}

	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return sent.MessageID, nil
}

// EditMessageText replaces the text of an existing message.
func (c *BotChannel) EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := c.api.Request(edit); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// DeleteMessage removes a message.
func (c *BotChannel) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// SendAudio uploads the audio file, and the thumbnail when ThumbPath is
// set. Both files are closed before SendAudio returns.
func (c *BotChannel) SendAudio(ctx context.Context, msg AudioMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	audio, err := os.Open(msg.Path)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer audio.Close()

	name := msg.FileName
	if name == "" {
		name = filepath.Base(msg.Path)
	}

	cfg := tgbotapi.NewAudio(msg.ChatID, tgbotapi.FileReader{Name: name, Reader: audio})
	cfg.Title = msg.Title
	cfg.Performer = msg.Performer
	cfg.Duration = msg.Duration
	cfg.Caption = msg.Caption
	cfg.ParseMode = tgbotapi.ModeMarkdown

	if msg.ThumbPath != "" {
		thumb, err := os.Open(msg.ThumbPath)
		if err != nil {
			c.logger.Warn("thumbnail unreadable, sending without it", "path", msg.ThumbPath, "error", err)
		} else {
			defer thumb.Close()
			cfg.Thumb = tgbotapi.FileReader{Name: filepath.Base(msg.ThumbPath), Reader: thumb}
		}
	}

	if _, err := c.api.Send(cfg); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

// SendPhoto sends a remote image with a Markdown caption.
func (c *BotChannel) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURL))
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeMarkdown
	if _, err := c.api.Send(photo); err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}

// EscapeMarkdown escapes user-provided text for legacy Markdown messages.
func EscapeMarkdown(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}
