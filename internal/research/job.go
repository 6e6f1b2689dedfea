package research

import (
	"context"
	"errors"
	"fmt"
	"time"

	"research-backend/internal/shared/telemetry"
)

const defaultMaxRetries = 3

// Runner executes research jobs pulled off the queue: it calls the research
// model, structures the raw answer, persists the terminal state and publishes
// progress events along the way.
type Runner struct {
	Repo       Repo
	Researcher Researcher
	Parser     Parser
	Notifier   *Notifier

	// MaxRetries bounds upstream retries per task. Zero means the default.
	MaxRetries int
	// Backoff returns the wait before retry attempt n (0-based). Nil means
	// the default linear schedule.
	Backoff func(attempt int) time.Duration
	// Sleep is swapped out in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

func defaultBackoff(attempt int) time.Duration {
	return time.Duration(attempt+1) * 60 * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Runner) maxRetries() int {
	if r.MaxRetries > 0 {
		return r.MaxRetries
	}
	return defaultMaxRetries
}

func (r *Runner) backoff(attempt int) time.Duration {
	if r.Backoff != nil {
		return r.Backoff(attempt)
	}
	return defaultBackoff(attempt)
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}

func (r *Runner) publish(ev Event) {
	if r.Notifier != nil {
		r.Notifier.Publish(ev)
	}
}

// TaskOptions carries the request-time prompt refinements that travel with
// the job rather than the persisted record.
type TaskOptions struct {
	SourceURLs    []string
	ProductURLs   []string
	StrictSources bool
}

// ProcessTask drives one analysis task to a terminal state. Upstream model
// failures are retried with linear backoff; once retries are exhausted the
// record is marked errored. A task already in a terminal state is skipped.
func (r *Runner) ProcessTask(ctx context.Context, taskID string, category Category, opts TaskOptions) error {
	rec, err := r.Repo.GetByTask(ctx, taskID, category)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			telemetry.Warn("research.job.orphan", map[string]any{"taskId": taskID, "category": string(category)})
			return nil
		}
		return fmt.Errorf("load task %s: %w", taskID, err)
	}
	if rec.Status != StatusProcessing {
		telemetry.Info("research.job.skip_terminal", map[string]any{"taskId": taskID, "status": string(rec.Status)})
		return nil
	}

	r.publish(Event{TaskID: taskID, Category: category, Status: EventProcessing, Message: "Starting analysis"})

	input := PromptInput{
		Topic:         rec.Topic,
		Query:         rec.Query,
		SourceURLs:    opts.SourceURLs,
		ProductURLs:   opts.ProductURLs,
		StrictSources: opts.StrictSources,
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries(); attempt++ {
		if attempt > 0 {
			r.publish(Event{TaskID: taskID, Category: category, Status: EventRetrying, Attempt: attempt})
			telemetry.Warn("research.job.retry", map[string]any{
				"taskId":  taskID,
				"attempt": attempt,
				"error":   lastErr.Error(),
			})
			if err := r.sleep(ctx, r.backoff(attempt-1)); err != nil {
				return err
			}
		}

		raw, err := r.Researcher.Research(ctx, category, input)
		if err != nil {
			lastErr = err
			continue
		}

		insights, count, err := r.Parser.Parse(ctx, category, raw, rec.Topic, rec.Query)
		if err != nil {
			lastErr = err
			continue
		}

		if err := r.Repo.MarkCompleted(ctx, taskID, insights, raw); err != nil {
			if errors.Is(err, ErrNotFound) {
				// Terminal state raced us; nothing left to do.
				return nil
			}
			return r.surrender(ctx, taskID, category, fmt.Errorf("complete task %s: %w", taskID, err))
		}
		telemetry.Info("research.job.completed", map[string]any{
			"taskId":   taskID,
			"category": string(category),
			"insights": count,
			"attempts": attempt + 1,
		})
		r.publish(Event{TaskID: taskID, Category: category, Status: EventCompleted, Insights: insights})
		return nil
	}

	msg := fmt.Sprintf("analysis failed after %d attempts: %v", r.maxRetries()+1, lastErr)
	if err := r.Repo.MarkError(ctx, taskID, msg); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("record failure for task %s: %w", taskID, err)
	}
	telemetry.Error("research.job.failed", map[string]any{"taskId": taskID, "category": string(category), "error": msg})
	r.publish(Event{TaskID: taskID, Category: category, Status: EventError, Error: msg})
	return nil
}

// surrender handles a failed terminal write: the record is marked errored if
// at all possible; only when even that write fails does the error reach the
// queue, leaving the record in processing for operator attention.
func (r *Runner) surrender(ctx context.Context, taskID string, category Category, cause error) error {
	msg := "failed to persist analysis result"
	if err := r.Repo.MarkError(ctx, taskID, msg); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		telemetry.Error("research.job.stranded", map[string]any{
			"taskId": taskID,
			"error":  err.Error(),
		})
		return cause
	}
	telemetry.Error("research.job.failed", map[string]any{"taskId": taskID, "category": string(category), "error": cause.Error()})
	r.publish(Event{TaskID: taskID, Category: category, Status: EventError, Error: msg})
	return nil
}
