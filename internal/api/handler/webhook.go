package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/tunegrab/internal/bot"
	"github.com/iconidentify/tunegrab/internal/telegram"
)

// maxUpdateBytes bounds the size of a webhook body.
const maxUpdateBytes = 1 << 20

// WebhookHandler receives Telegram updates pushed to the webhook URL.
type WebhookHandler struct {
	dispatcher bot.Dispatcher
	secret     []byte
	logger     *slog.Logger
}

// NewWebhookHandler creates a new webhook handler. Requests must carry
// secret in the {secret} route parameter.
func NewWebhookHandler(dispatcher bot.Dispatcher, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher, secret: []byte(secret), logger: logger}
}

// Receive handles POST on the webhook path. Telegram retries on non-2xx,
// so dispatch failures are logged and still acknowledged.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	given := []byte(chi.URLParam(r, "secret"))
	if len(h.secret) == 0 || subtle.ConstantTimeCompare(given, h.secret) != 1 {
		h.logger.Warn("webhook secret mismatch", "remote_addr", r.RemoteAddr)
		http.NotFound(w, r)
		return
	}

	update, err := telegram.ParseUpdate(http.MaxBytesReader(w, r.Body, maxUpdateBytes))
	if err != nil {
		h.logger.Warn("invalid webhook payload", "error", err)
		writeError(w, http.StatusBadRequest, "invalid update")
		return
	}

	if in, ok := bot.FromUpdate(*update); ok {
		if err := h.dispatcher.Dispatch(r.Context(), in); err != nil {
			h.logger.Error("failed to dispatch message", "update_id", update.UpdateID, "chat_id", in.ChatID, "error", err)
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
