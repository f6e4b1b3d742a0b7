// Package bot receives Telegram updates, answers the informational
// commands and hands every other text message to the fulfillment pipeline.
package bot

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Inbound is a parsed text message.
type Inbound struct {
	ChatID    int64
	MessageID int
	UserName  string
	Text      string
}

// FromUpdate extracts a text message from an update. It reports false for
// updates that carry no text.
func FromUpdate(update tgbotapi.Update) (Inbound, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || strings.TrimSpace(msg.Text) == "" {
		return Inbound{}, false
	}

	in := Inbound{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Text:      msg.Text,
		UserName:  "there",
	}
	if msg.From != nil {
		switch {
		case msg.From.FirstName != "":
			in.UserName = msg.From.FirstName
		case msg.From.UserName != "":
			in.UserName = msg.From.UserName
		}
	}
	return in, true
}

// command returns the lower-cased command name without the leading slash
// or @botname suffix, or "" when text is not a command.
func command(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	name := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}
