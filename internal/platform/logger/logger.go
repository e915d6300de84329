package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/workstreamhq/taskforge/internal/config"
)

// Setup initializes the service's logging system from the provided
// configuration. It creates a structured JSON logger writing to stdout at
// the configured level and installs it as the process default so the slog
// package functions (slog.Info, slog.Error, ...) use it too.
//
// An unrecognized level falls back to info with a warning rather than
// failing startup.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo

		// The real logger does not exist yet, so warn through a throwaway
		// text handler on stderr.
		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.LogLevel,
			"default_level", "info")
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger, nil
}
