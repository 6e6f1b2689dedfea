package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"research-backend/internal/llm"
	"research-backend/internal/shared/telemetry"
)

// Parser converts free-form research text into the category's typed insight
// list. A structural failure (output that does not match the schema) yields
// an empty list and no error; only transport failures propagate.
type Parser interface {
	Parse(ctx context.Context, category Category, rawText, topic, query string) (json.RawMessage, int, error)
}

// LLMParser implements Parser with a schema-constrained structuring LLM call.
type LLMParser struct {
	Client llm.Client
}

const structuringSystemPrompt = "You convert market research text into strict JSON. " +
	"Respond with a single JSON object of the form {\"insights\": [...]} and nothing else. " +
	"Every insight must include a title, a direct quote as evidence, its sourceUrl, and an engagement signal. " +
	"Omit insights you cannot ground in the text."

// Parse issues one structuring call and decodes the category's insight list.
// The originating query is stamped onto every item after decoding; the LLM is
// never trusted to echo it.
func (p *LLMParser) Parse(ctx context.Context, category Category, rawText, topic, query string) (json.RawMessage, int, error) {
	d, ok := LookupCategory(string(category))
	if !ok {
		return nil, 0, ErrUnknownCategory
	}
	if p.Client == nil {
		return nil, 0, errors.New("structuring client not configured")
	}

	temp := float32(0)
	out, err := p.Client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: structuringSystemPrompt},
			{Role: "user", Content: buildStructuringPrompt(d, rawText, topic)},
		},
		Temperature: &temp,
		JSONOnly:    true,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("structuring %s: %w", d.Code, err)
	}

	insights, count, decodeErr := d.decode([]byte(out), query)
	if decodeErr != nil {
		// Bad structure is terminal, not retryable: the raw text is kept and
		// the record completes with no insights.
		telemetry.Warn("research.parse.schema_mismatch", map[string]any{
			"category": d.Code,
			"error":    decodeErr.Error(),
		})
		return emptyInsights, 0, nil
	}
	return insights, count, nil
}

func buildStructuringPrompt(d Descriptor, rawText, topic string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\nCategory: %s\n\n", topic, d.Category)
	fmt.Fprintf(&b, "Schema for each insight object:\n%s\n\n", d.schemaHint)
	b.WriteString("Research text to structure:\n")
	b.WriteString(rawText)
	return b.String()
}

const (
	painSchemaHint = `{"title": string, "evidence": string (direct quote), "sourceUrl": string, "engagement": string,
 "severity": string (low|medium|high|critical), "impact": string}`

	questionSchemaHint = `{"title": string (the question), "evidence": string (direct quote), "sourceUrl": string, "engagement": string,
 "questionType": string, "suggestedAnswers": [string], "relatedQuestions": [string]}`

	patternSchemaHint = `{"title": string (pattern name), "evidence": string (direct quote), "sourceUrl": string, "engagement": string,
 "patternType": string, "correlation": string, "significance": string}`

	productSchemaHint = `{"title": string (product name), "evidence": string (direct quote), "sourceUrl": string, "engagement": string,
 "platform": string, "price": string, "positiveFeedback": [string], "negativeFeedback": [string], "marketGap": string}`

	avatarSchemaHint = `{"title": string (persona headline), "evidence": string (direct quote), "sourceUrl": string, "engagement": string,
 "personaName": string, "personaType": string, "demographics": string, "buyingBehavior": string,
 "purchaseDrivers": string, "competitiveLandscape": string}`
)

type queryStamper interface {
	stampQuery(string)
}

// decodeInsightList decodes {"insights": [...]} (or a bare array) into the
// category's typed slice, stamps the query on every item, and re-encodes.
func decodeInsightList[T any](data []byte, query string) ([]byte, int, error) {
	var wrapper struct {
		Insights []T `json:"insights"`
	}
	var items []T
	if err := json.Unmarshal(data, &wrapper); err != nil || wrapper.Insights == nil {
		var bare []T
		if bareErr := json.Unmarshal(data, &bare); bareErr != nil {
			if err == nil {
				err = bareErr
			}
			return nil, 0, fmt.Errorf("insight list decode: %w", err)
		}
		items = bare
	} else {
		items = wrapper.Insights
	}

	for i := range items {
		stamper, ok := any(&items[i]).(queryStamper)
		if !ok {
			return nil, 0, errors.New("insight type does not carry base fields")
		}
		stamper.stampQuery(query)
	}

	encoded, err := json.Marshal(items)
	if err != nil {
		return nil, 0, fmt.Errorf("insight list encode: %w", err)
	}
	if len(items) == 0 {
		return emptyInsights, 0, nil
	}
	return encoded, len(items), nil
}

var _ Parser = (*LLMParser)(nil)
