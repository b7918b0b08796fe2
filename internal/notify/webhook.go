// Package notify delivers alert notifications to an external webhook.
// Delivery is fire-and-forget: one attempt per event, failures are logged
// and swallowed so the evaluation loop never stalls on a slow endpoint.
package notify

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/Sd3mir06/iguardian/internal/engine"
)

// Webhook posts notifications as JSON to a configured URL.
type Webhook struct {
	client *resty.Client
	url    string
	logger zerolog.Logger
}

// NewWebhook creates a notifier for url. An empty url disables delivery;
// notifications are then dropped with a debug log.
func NewWebhook(url string, timeout time.Duration, logger zerolog.Logger) *Webhook {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0) // at most one attempt per qualifying event
	return &Webhook{
		client: client,
		url:    url,
		logger: logger.With().Str("component", "notify").Logger(),
	}
}

// Notify dispatches n asynchronously and returns immediately.
func (w *Webhook) Notify(n engine.Notification) {
	if w.url == "" {
		w.logger.Debug().Str("title", n.Title).Msg("no webhook configured, dropping notification")
		return
	}
	go func() {
		resp, err := w.client.R().
			SetHeader("Content-Type", "application/json").
			SetBody(n).
			Post(w.url)
		if err != nil {
			w.logger.Warn().Err(err).Str("title", n.Title).Msg("notification delivery failed")
			return
		}
		if resp.IsError() {
			w.logger.Warn().Int("status", resp.StatusCode()).Str("title", n.Title).
				Msg("webhook rejected notification")
			return
		}
		w.logger.Debug().Str("title", n.Title).Msg("notification delivered")
	}()
}
