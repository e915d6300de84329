package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	slackBaseURL = "https://slack.com/api"

	slackTimeout    = 30 * time.Second
	slackAttempts   = 3
	slackRetryDelay = time.Second
)

// Slack client validation errors.
var (
	ErrSlackChannelEmpty = errors.New("slack channel must not be empty")
	ErrSlackMessageEmpty = errors.New("slack message must not be empty")
)

// SlackClient posts messages through the Slack Web API. The zero token is
// allowed; Enabled reports false and PostMessage refuses to send.
type SlackClient struct {
	token      string
	baseURL    string
	retryDelay time.Duration
	client     *http.Client
}

// NewSlackClient creates a client authenticated with the given bot token.
func NewSlackClient(token string) *SlackClient {
	return &SlackClient{
		token:      token,
		baseURL:    slackBaseURL,
		retryDelay: slackRetryDelay,
		client:     &http.Client{Timeout: slackTimeout},
	}
}

// Enabled reports whether the client holds credentials to post with.
func (c *SlackClient) Enabled() bool {
	return c.token != ""
}

// PostMessage sends a markdown-formatted message to the channel. Transient
// failures are retried with exponential backoff before giving up.
func (c *SlackClient) PostMessage(ctx context.Context, channel, text string) error {
	if !c.Enabled() {
		return errors.New("slack client is not configured")
	}
	if channel == "" {
		return ErrSlackChannelEmpty
	}
	if text == "" {
		return ErrSlackMessageEmpty
	}

	payload := map[string]any{
		"channel": channel,
		"text":    text,
		"mrkdwn":  true,
	}

	var lastErr error
	delay := c.retryDelay
	for attempt := 1; attempt <= slackAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}

		lastErr = c.postMessage(ctx, payload)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}

	return fmt.Errorf("failed to post slack message after %d attempts: %w", slackAttempts, lastErr)
}

func (c *SlackClient) postMessage(ctx context.Context, payload map[string]any) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)
	header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := sendJSON(ctx, c.client, c.baseURL+"/chat.postMessage", header, payload)
	if err != nil {
		return fmt.Errorf("failed to call slack api: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack api returned status %d", resp.StatusCode)
	}

	var result struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode slack response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("slack api error: %s", result.Error)
	}

	return nil
}
