package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const webhookTimeout = 10 * time.Second

// WebhookClient POSTs JSON payloads to arbitrary HTTP endpoints.
type WebhookClient struct {
	client *http.Client
}

// NewWebhookClient creates a webhook client with a bounded request timeout.
func NewWebhookClient() *WebhookClient {
	return &WebhookClient{
		client: &http.Client{Timeout: webhookTimeout},
	}
}

// Post sends payload as JSON to url and fails on any non-2xx response.
func (c *WebhookClient) Post(ctx context.Context, url string, payload any) error {
	if url == "" {
		return errors.New("webhook url must not be empty")
	}

	resp, err := sendJSON(ctx, c.client, url, nil, payload)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
