package telegram

import (
	"encoding/json"
	"fmt"
	"io"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SetWebhook drops any existing webhook registration and points Telegram at url.
func SetWebhook(api API, url string) error {
	if err := RemoveWebhook(api); err != nil {
		return err
	}

	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("build webhook: %w", err)
	}
	if _, err := api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// RemoveWebhook unregisters the webhook so long polling can be used.
func RemoveWebhook(api API) error {
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("remove webhook: %w", err)
	}
	return nil
}

// ParseUpdate decodes a webhook request body.
func ParseUpdate(r io.Reader) (*tgbotapi.Update, error) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r).Decode(&update); err != nil {
		return nil, fmt.Errorf("decode update: %w", err)
	}
	return &update, nil
}
