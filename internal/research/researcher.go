package research

import (
	"context"
	"fmt"

	"research-backend/internal/llm"
)

// Researcher issues the discovery call to the external research LLM and
// returns its free-form, citation-rich completion.
type Researcher interface {
	Research(ctx context.Context, category Category, in PromptInput) (string, error)
}

// LLMResearcher holds one chat client per category so model and temperature
// tuning can diverge between categories without cross-contamination.
type LLMResearcher struct {
	clients map[Category]llm.Client
}

// NewLLMResearcher builds a researcher with one client per category from the
// given factory.
func NewLLMResearcher(factory func(Descriptor) (llm.Client, error)) (*LLMResearcher, error) {
	clients := make(map[Category]llm.Client, len(descriptors))
	for _, d := range descriptors {
		client, err := factory(d)
		if err != nil {
			return nil, fmt.Errorf("research client for %s: %w", d.Code, err)
		}
		clients[d.Category] = client
	}
	return &LLMResearcher{clients: clients}, nil
}

// Research performs exactly one research call for the category.
func (r *LLMResearcher) Research(ctx context.Context, category Category, in PromptInput) (string, error) {
	d, ok := LookupCategory(string(category))
	if !ok {
		return "", ErrUnknownCategory
	}
	client, ok := r.clients[category]
	if !ok || client == nil {
		return "", fmt.Errorf("no research client for category %s", category)
	}

	temp := d.Temperature
	raw, err := client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: d.SystemPrompt},
			{Role: "user", Content: d.BuildPrompt(in)},
		},
		Temperature: &temp,
	})
	if err != nil {
		return "", fmt.Errorf("research %s: %w", d.Code, err)
	}
	return raw, nil
}

var _ Researcher = (*LLMResearcher)(nil)
