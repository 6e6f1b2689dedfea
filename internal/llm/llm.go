package llm

import (
	"context"
	"errors"
)

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries one chat completion call.
type Request struct {
	Messages    []Message
	Temperature *float32
	// JSONOnly constrains the completion to a single JSON object
	// (response_format json_object on OpenAI-compatible APIs).
	JSONOnly bool
}

// Client abstracts chat-completion providers. Both the research LLM and the
// structuring LLM speak this contract; they differ only in endpoint and model.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrUpstream marks transient provider failures (network, non-2xx, empty
// completion). Callers decide whether to retry.
var ErrUpstream = errors.New("llm upstream error")

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("llm client not configured")

// PlaceholderClient is a stub implementation used when no provider is wired.
type PlaceholderClient struct{}

// Complete returns ErrNotConfigured.
func (PlaceholderClient) Complete(ctx context.Context, req Request) (string, error) {
	_ = ctx
	_ = req
	return "", ErrNotConfigured
}

var _ Client = PlaceholderClient{}
