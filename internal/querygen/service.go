// Package querygen turns a free-text product description into one natural
// research question, used as the user query for downstream analyses.
package querygen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"research-backend/internal/llm"
)

// ErrEmptyDescription indicates a blank description payload.
var ErrEmptyDescription = errors.New("description is required")

const systemPrompt = "You turn product descriptions into a single natural research question " +
	"that a potential customer might ask in an online community. " +
	"Respond with a JSON object of the form {\"query\": string} and nothing else."

// Service generates queries with a single-shot structuring call. Failures are
// surfaced directly; there is no retry.
type Service struct {
	Client llm.Client
}

// Generate returns one conversational question for the description.
func (s *Service) Generate(ctx context.Context, description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", ErrEmptyDescription
	}
	if s.Client == nil {
		return "", llm.ErrNotConfigured
	}

	temp := float32(0.7)
	out, err := s.Client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Product description:\n" + description},
		},
		Temperature: &temp,
		JSONOnly:    true,
	})
	if err != nil {
		return "", fmt.Errorf("generate query: %w", err)
	}

	var parsed struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return "", fmt.Errorf("generate query: decode response: %w", err)
	}
	query := strings.TrimSpace(parsed.Query)
	if query == "" {
		return "", errors.New("generate query: model returned no query")
	}
	return query, nil
}
