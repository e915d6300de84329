package triage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/workstreamhq/taskforge/internal/platform/notify"
)

// Playbook names accepted by the triager configuration.
const (
	PlaybookLogOnly         = "log_only"
	PlaybookNotifySlack     = "notify_slack"
	PlaybookWebhook         = "webhook"
	PlaybookNotifyPagerDuty = "notify_pagerduty"
)

// Alert carries the context handed to a playbook when the dead-letter
// threshold for an error type is breached.
type Alert struct {
	Queue     string
	ErrorType string
	TaskName  string
	TaskID    string
	Metadata  map[string]any
}

// Playbook is a named remediation action run when an alert fires.
// Implementations must be safe for concurrent use. Execution failures are
// logged by the triager and never interrupt task processing.
//
// Version: 1.0
type Playbook interface {
	// Name returns the configuration name of the playbook.
	Name() string

	// Execute runs the remediation action for the alert.
	Execute(ctx context.Context, alert Alert) error
}

// LogOnlyPlaybook records the alert in the service log and does nothing
// else. It is the default when no external channel is configured.
type LogOnlyPlaybook struct {
	logger *slog.Logger
}

// NewLogOnlyPlaybook creates a playbook that only logs alerts.
func NewLogOnlyPlaybook(logger *slog.Logger) *LogOnlyPlaybook {
	return &LogOnlyPlaybook{logger: logger.With("component", "playbook")}
}

// Name implements Playbook.
func (p *LogOnlyPlaybook) Name() string { return PlaybookLogOnly }

// Execute implements Playbook.
func (p *LogOnlyPlaybook) Execute(_ context.Context, alert Alert) error {
	p.logger.Warn("dead-letter threshold exceeded",
		"queue", alert.Queue,
		"error_type", alert.ErrorType,
		"task_name", alert.TaskName,
		"task_id", alert.TaskID)
	return nil
}

// SlackPlaybook posts the alert to a Slack channel.
type SlackPlaybook struct {
	client  *notify.SlackClient
	channel string
	dryRun  bool
	logger  *slog.Logger
}

// NewSlackPlaybook creates a playbook posting to channel through client.
// With dryRun set the message is logged instead of sent.
func NewSlackPlaybook(client *notify.SlackClient, channel string, dryRun bool, logger *slog.Logger) *SlackPlaybook {
	return &SlackPlaybook{
		client:  client,
		channel: channel,
		dryRun:  dryRun,
		logger:  logger.With("component", "playbook"),
	}
}

// Name implements Playbook.
func (p *SlackPlaybook) Name() string { return PlaybookNotifySlack }

// Execute implements Playbook.
func (p *SlackPlaybook) Execute(ctx context.Context, alert Alert) error {
	if p.channel == "" || !p.client.Enabled() {
		p.logger.Warn("slack alert skipped, channel not configured",
			"queue", alert.Queue,
			"error_type", alert.ErrorType)
		return nil
	}

	message := fmt.Sprintf(":rotating_light: Dead-letter threshold exceeded\nQueue: `%s`\nError: `%s`\nTask: `%s`",
		alert.Queue, alert.ErrorType, alert.TaskName)

	if p.dryRun {
		p.logger.Warn("dry run, slack alert suppressed",
			"channel", p.channel,
			"message", message)
		return nil
	}

	return p.client.PostMessage(ctx, p.channel, message)
}

// WebhookPlaybook POSTs the alert as JSON to a configured endpoint.
type WebhookPlaybook struct {
	client *notify.WebhookClient
	url    string
	dryRun bool
	logger *slog.Logger
}

// NewWebhookPlaybook creates a playbook posting alerts to url.
func NewWebhookPlaybook(client *notify.WebhookClient, url string, dryRun bool, logger *slog.Logger) *WebhookPlaybook {
	return &WebhookPlaybook{
		client: client,
		url:    url,
		dryRun: dryRun,
		logger: logger.With("component", "playbook"),
	}
}

// Name implements Playbook.
func (p *WebhookPlaybook) Name() string { return PlaybookWebhook }

// Execute implements Playbook.
func (p *WebhookPlaybook) Execute(ctx context.Context, alert Alert) error {
	if p.url == "" {
		p.logger.Warn("webhook alert skipped, url not configured",
			"queue", alert.Queue,
			"error_type", alert.ErrorType)
		return nil
	}

	metadata := alert.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	payload := map[string]any{
		"queue":      alert.Queue,
		"error_type": alert.ErrorType,
		"task":       alert.TaskName,
		"task_id":    alert.TaskID,
		"metadata":   metadata,
		"playbook":   p.Name(),
	}

	if p.dryRun {
		p.logger.Warn("dry run, webhook alert suppressed", "url", p.url)
		return nil
	}

	return p.client.Post(ctx, p.url, payload)
}

// PagerDutyPlaybook triggers a PagerDuty incident for the alert.
type PagerDutyPlaybook struct {
	client *notify.PagerDutyClient
	dryRun bool
	logger *slog.Logger
}

// NewPagerDutyPlaybook creates a playbook triggering incidents through client.
func NewPagerDutyPlaybook(client *notify.PagerDutyClient, dryRun bool, logger *slog.Logger) *PagerDutyPlaybook {
	return &PagerDutyPlaybook{
		client: client,
		dryRun: dryRun,
		logger: logger.With("component", "playbook"),
	}
}

// Name implements Playbook.
func (p *PagerDutyPlaybook) Name() string { return PlaybookNotifyPagerDuty }

// Execute implements Playbook.
func (p *PagerDutyPlaybook) Execute(ctx context.Context, alert Alert) error {
	if !p.client.Enabled() {
		p.logger.Warn("pagerduty alert skipped, routing key not configured",
			"queue", alert.Queue,
			"error_type", alert.ErrorType)
		return nil
	}

	metadata := alert.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	summary := fmt.Sprintf("Dead-letter threshold exceeded for %s", alert.ErrorType)
	details := map[string]any{
		"queue":     alert.Queue,
		"task_id":   alert.TaskID,
		"task_name": alert.TaskName,
		"metadata":  metadata,
	}

	if p.dryRun {
		p.logger.Warn("dry run, pagerduty alert suppressed", "summary", summary)
		return nil
	}

	return p.client.TriggerIncident(ctx, summary, "error", details)
}
