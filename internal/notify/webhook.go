package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// WebhookPublisher posts events as JSON to an HTTP endpoint.
type WebhookPublisher struct {
	client *resty.Client
	url    string
}

// NewWebhook creates a publisher posting to url. A non-empty secret is sent
// as a bearer token.
func NewWebhook(url, secret string, timeout time.Duration) *WebhookPublisher {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Content-Type", "application/json")
	if secret != "" {
		client.SetAuthToken(secret)
	}
	return &WebhookPublisher{client: client, url: url}
}

func (w *WebhookPublisher) Publish(ctx context.Context, ev Event) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("X-Event-Type", ev.Type).
		SetBody(ev).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("post %s: %w", ev.Type, err)
	}
	if resp.IsError() {
		return fmt.Errorf("post %s: unexpected status %d", ev.Type, resp.StatusCode())
	}
	return nil
}
