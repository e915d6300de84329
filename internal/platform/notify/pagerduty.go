package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	pagerDutyBaseURL = "https://events.pagerduty.com"
	pagerDutyTimeout = 10 * time.Second

	// pagerDutySource identifies this service in triggered incidents.
	pagerDutySource = "taskforge"
)

// PagerDutyClient triggers incidents through the PagerDuty Events API v2.
type PagerDutyClient struct {
	routingKey string
	baseURL    string
	client     *http.Client
}

// NewPagerDutyClient creates a client for the integration identified by
// routingKey. An empty key leaves the client disabled.
func NewPagerDutyClient(routingKey string) *PagerDutyClient {
	return &PagerDutyClient{
		routingKey: routingKey,
		baseURL:    pagerDutyBaseURL,
		client:     &http.Client{Timeout: pagerDutyTimeout},
	}
}

// Enabled reports whether the client holds a routing key to send with.
func (c *PagerDutyClient) Enabled() bool {
	return c.routingKey != ""
}

// TriggerIncident sends a trigger event with the given summary and severity.
// Details are attached to the incident as custom fields.
func (c *PagerDutyClient) TriggerIncident(ctx context.Context, summary, severity string, details map[string]any) error {
	if !c.Enabled() {
		return errors.New("pagerduty client is not configured")
	}
	if details == nil {
		details = map[string]any{}
	}

	payload := map[string]any{
		"routing_key":  c.routingKey,
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":        summary,
			"source":         pagerDutySource,
			"severity":       severity,
			"custom_details": details,
		},
	}

	resp, err := sendJSON(ctx, c.client, c.baseURL+"/v2/enqueue", nil, payload)
	if err != nil {
		return fmt.Errorf("failed to call pagerduty api: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pagerduty api returned status %d", resp.StatusCode)
	}

	return nil
}
