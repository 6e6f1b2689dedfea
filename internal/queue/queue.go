package queue

import "context"

// Producer sends job messages to a queue backend.
type Producer interface {
	Enqueue(ctx context.Context, msg Message) error
}

// Consumer receives job messages and executes a handler per message. A non-nil
// handler error requeues the message until the backend's attempt cap.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, Message) error) error
}
