// Package workerproc adapts queue messages into analysis job executions.
package workerproc

import (
	"context"

	"research-backend/internal/queue"
	"research-backend/internal/research"
	"research-backend/internal/shared/telemetry"
)

// Processor handles queue messages for the worker process. Malformed messages
// are logged and acknowledged rather than requeued; only transient execution
// failures propagate so the queue backend can retry or dead-letter them.
type Processor struct {
	Runner *research.Runner
}

// Handle executes one queue message.
func (p *Processor) Handle(ctx context.Context, msg queue.Message) error {
	if msg.TaskID == "" {
		telemetry.Warn("worker.message.missing_task", map[string]any{"category": msg.Category})
		return nil
	}
	desc, ok := research.LookupCategory(msg.Category)
	if !ok {
		telemetry.Warn("worker.message.unknown_category", map[string]any{
			"taskId":   msg.TaskID,
			"category": msg.Category,
		})
		return nil
	}

	telemetry.Info("worker.message.received", map[string]any{
		"taskId":    msg.TaskID,
		"category":  msg.Category,
		"requestId": msg.RequestID,
		"attempt":   msg.Attempt,
	})
	return p.Runner.ProcessTask(ctx, msg.TaskID, desc.Category, research.TaskOptions{
		SourceURLs:    msg.SourceURLs,
		ProductURLs:   msg.ProductURLs,
		StrictSources: msg.StrictSources,
	})
}
