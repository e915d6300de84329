package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix namespaces every environment variable the loader reads,
// e.g. TASKFORGE_WORKER_COUNT sets the worker.count key.
const envPrefix = "TASKFORGE"

// Load reads configuration from an optional taskforge.yaml in the working
// directory and from TASKFORGE_* environment variables.
// Environment variables take precedence over values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("taskforge")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("server.log_level", "info")

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.redis_url", "redis://localhost:6379/0")
	v.SetDefault("store.namespace", "taskforge")

	v.SetDefault("queue.name", "taskforge")
	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("queue.audit_max_entries", 1000)

	v.SetDefault("worker.count", 5)
	v.SetDefault("worker.poll_interval", "100ms")
	v.SetDefault("worker.default_timeout", "5m")
	v.SetDefault("worker.backoff_base", 2.0)
	v.SetDefault("worker.backoff_max", "60s")
	v.SetDefault("worker.heartbeat_ttl", "5m")

	v.SetDefault("triage.auto_requeue_error_types", []string{})
	v.SetDefault("triage.max_auto_requeues", 3)
	v.SetDefault("triage.alert_threshold", 5)
	v.SetDefault("triage.alert_window", "5m")
	v.SetDefault("triage.alert_cooldown", "10m")
	v.SetDefault("triage.playbook", "log_only")
	v.SetDefault("triage.dry_run", false)

	v.SetDefault("notify.slack_token", "")
	v.SetDefault("notify.slack_channel", "")
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.pagerduty_routing_key", "")
}
