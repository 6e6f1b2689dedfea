package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"research-backend/internal/bootstrap"
	"research-backend/internal/shared/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewWorker(ctx)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer app.Close()

	telemetry.Info("worker.start", map[string]any{
		"concurrency": app.Config.WorkerConcurrency,
		"env":         app.Config.Env,
	})

	if err := app.RunWorkerLoop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker loop: %v", err)
	}
	telemetry.Info("worker.shutdown", nil)
}
