package queue

import (
	"context"
	"sync"
	"time"

	"research-backend/internal/shared/telemetry"
)

// LocalQueue is an in-process fallback used when Redis is not configured.
// It lets cmd/api run the whole pipeline in one process for development.
type LocalQueue struct {
	ch          chan Message
	maxAttempts int

	dlqMu sync.Mutex
	dlq   []Message
}

// NewLocalQueue constructs a LocalQueue.
func NewLocalQueue(bufferSize, maxAttempts int) *LocalQueue {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &LocalQueue{
		ch:          make(chan Message, bufferSize),
		maxAttempts: maxAttempts,
	}
}

// Enqueue places the message on the in-process channel.
func (q *LocalQueue) Enqueue(ctx context.Context, msg Message) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- msg:
		return nil
	}
}

// Consume processes messages until ctx is canceled. Failed messages are
// retried with a short delay and parked on an in-memory DLQ when exhausted.
func (q *LocalQueue) Consume(ctx context.Context, handler func(context.Context, Message) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-q.ch:
			err := handler(ctx, msg)
			if err == nil {
				continue
			}

			msg.Attempt++
			if msg.Attempt >= q.maxAttempts {
				q.dlqMu.Lock()
				q.dlq = append(q.dlq, msg)
				q.dlqMu.Unlock()
				telemetry.Error("queue.local.dlq", map[string]any{
					"task_id": msg.TaskID,
					"error":   err.Error(),
				})
				continue
			}

			delay := time.Duration(msg.Attempt) * 500 * time.Millisecond
			go func(retry Message) {
				timer := time.NewTimer(delay)
				defer timer.Stop()
				select {
				case <-ctx.Done():
				case <-timer.C:
					select {
					case q.ch <- retry:
					case <-ctx.Done():
					}
				}
			}(msg)
		}
	}
}

// DLQSize reports how many messages were parked after exhausting retries.
func (q *LocalQueue) DLQSize() int {
	q.dlqMu.Lock()
	defer q.dlqMu.Unlock()
	return len(q.dlq)
}

var (
	_ Producer = (*LocalQueue)(nil)
	_ Consumer = (*LocalQueue)(nil)
)
