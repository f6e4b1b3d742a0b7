// Package telegram adapts the Telegram Bot API to the conversation channel
// used by the fulfillment pipeline and the command router.
package telegram

import (
	"context"
)

// Chat actions understood by Telegram.
const (
	ActionTyping      = "typing"
	ActionUploadAudio = "upload_audio"
	ActionUploadPhoto = "upload_photo"
)

// AudioMessage describes one audio delivery. Path and ThumbPath are opened
// only for the duration of the send call.
type AudioMessage struct {
	ChatID    int64
	Path      string
	FileName  string
	Title     string
	Performer string
	Duration  int
	Caption   string
	ThumbPath string // optional
}

// Channel is the only way the bot talks to a user.
type Channel interface {
	SendChatAction(ctx context.Context, chatID int64, action string) error
	// SendMessage sends text, optionally as a reply, and returns the new message ID.
	SendMessage(ctx context.Context, chatID int64, replyTo int, text string) (int, error)
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendAudio(ctx context.Context, msg AudioMessage) error
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error
}
