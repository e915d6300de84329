package config

import "time"

// Config holds all service configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server ServerConfig `mapstructure:"server" validate:"required"`
	Store  StoreConfig  `mapstructure:"store" validate:"required"`
	Queue  QueueConfig  `mapstructure:"queue" validate:"required"`
	Worker WorkerConfig `mapstructure:"worker" validate:"required"`
	Triage TriageConfig `mapstructure:"triage" validate:"required"`
	Notify NotifyConfig `mapstructure:"notify"`
}

// ServerConfig contains the daemon's operational HTTP settings.
type ServerConfig struct {
	// MetricsAddr is the listen address for the health and metrics endpoints.
	MetricsAddr string `mapstructure:"metrics_addr" validate:"required"`

	// LogLevel controls the minimum level emitted by the JSON logger.
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// StoreConfig selects and configures the queue storage backend.
type StoreConfig struct {
	// Backend picks the store implementation.
	Backend string `mapstructure:"backend" validate:"required,oneof=memory redis"`

	// RedisURL is the connection URL for the redis backend,
	// e.g. redis://:password@localhost:6379/0.
	RedisURL string `mapstructure:"redis_url" validate:"required_if=Backend redis,omitempty,url"`

	// Namespace prefixes every key the engine writes to the store.
	Namespace string `mapstructure:"namespace" validate:"required"`
}

// QueueConfig contains queue-level settings.
type QueueConfig struct {
	// Name labels the queue in logs and metrics.
	Name string `mapstructure:"name" validate:"required"`

	// MaxRetries is the retry budget stamped on envelopes that do not
	// specify their own.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`

	// AuditMaxEntries caps the dead-letter audit trail.
	AuditMaxEntries int `mapstructure:"audit_max_entries" validate:"gt=0"`
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	// Count is the number of concurrent workers.
	Count int `mapstructure:"count" validate:"gt=0"`

	// PollInterval is how long an idle worker waits between queue polls.
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`

	// DefaultTimeout bounds a single task execution when no retry policy
	// overrides it.
	DefaultTimeout time.Duration `mapstructure:"default_timeout" validate:"gt=0"`

	// BackoffBase is the exponential backoff base, in seconds.
	BackoffBase float64 `mapstructure:"backoff_base" validate:"gt=0"`

	// BackoffMax caps the delay between retries.
	BackoffMax time.Duration `mapstructure:"backoff_max" validate:"gt=0"`

	// HeartbeatTTL is how long a worker heartbeat stays visible after the
	// worker stops renewing it.
	HeartbeatTTL time.Duration `mapstructure:"heartbeat_ttl" validate:"gt=0"`
}

// TriageConfig contains dead-letter triage and alerting settings.
type TriageConfig struct {
	// AutoRequeueErrorTypes lists error types requeued automatically.
	AutoRequeueErrorTypes []string `mapstructure:"auto_requeue_error_types"`

	// MaxAutoRequeues caps automatic requeues per error type and task.
	MaxAutoRequeues int `mapstructure:"max_auto_requeues" validate:"gte=0"`

	// AlertThreshold is the dead-letter count that triggers the playbook.
	AlertThreshold int `mapstructure:"alert_threshold" validate:"gt=0"`

	// AlertWindow is the sliding window the threshold is evaluated in.
	AlertWindow time.Duration `mapstructure:"alert_window" validate:"gt=0"`

	// AlertCooldown is the minimum gap between alerts per error type.
	AlertCooldown time.Duration `mapstructure:"alert_cooldown" validate:"gt=0"`

	// Playbook names the remediation action run when an alert fires.
	Playbook string `mapstructure:"playbook" validate:"required,oneof=log_only notify_slack webhook notify_pagerduty"`

	// DryRun makes playbooks log instead of calling external services.
	DryRun bool `mapstructure:"dry_run"`
}

// NotifyConfig contains credentials for the alerting channels. Channels with
// empty credentials are disabled.
type NotifyConfig struct {
	// SlackToken is the bot token used for chat.postMessage.
	SlackToken string `mapstructure:"slack_token"`

	// SlackChannel is the channel alerts are posted to.
	SlackChannel string `mapstructure:"slack_channel"`

	// WebhookURL receives alert payloads as JSON POSTs.
	WebhookURL string `mapstructure:"webhook_url" validate:"omitempty,url"`

	// PagerDutyRoutingKey is the Events API v2 integration key.
	PagerDutyRoutingKey string `mapstructure:"pagerduty_routing_key"`
}
