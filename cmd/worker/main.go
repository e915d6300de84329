// Package main implements the taskforge worker daemon. It drains the task
// queue with a pool of workers, triages dead letters, and serves the
// operational HTTP endpoints for health and metrics.
package main

import (
	"context"
	"log"
	"os"

	"github.com/workstreamhq/taskforge/internal/config"
	"github.com/workstreamhq/taskforge/internal/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	ctx := context.Background()

	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		appLogger.Error("worker daemon failed", "error", err)
		os.Exit(1)
	}
}
