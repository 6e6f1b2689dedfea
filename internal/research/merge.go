package research

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MergedInsight is one insight from a project's community feed, tagged with
// the category and task that produced it. The insight payload keeps its
// category-specific shape.
type MergedInsight struct {
	Category Category        `json:"category"`
	TaskID   string          `json:"taskId"`
	Insight  json.RawMessage `json:"insight"`
}

// MergeInsights flattens completed analysis records into one feed. Insights
// are deduplicated by (title, query), case-insensitively; the newest record
// wins because the input is ordered newest-first.
func MergeInsights(recs []AnalysisRecord) ([]MergedInsight, error) {
	seen := make(map[string]struct{})
	out := make([]MergedInsight, 0)

	for _, rec := range recs {
		if len(rec.Insights) == 0 {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(rec.Insights, &items); err != nil {
			return nil, fmt.Errorf("decode insights for task %s: %w", rec.TaskID, err)
		}
		for _, item := range items {
			var key struct {
				Title string `json:"title"`
				Query string `json:"query"`
			}
			if err := json.Unmarshal(item, &key); err != nil {
				return nil, fmt.Errorf("decode insight for task %s: %w", rec.TaskID, err)
			}
			k := strings.ToLower(strings.TrimSpace(key.Title)) + "\x00" + strings.ToLower(strings.TrimSpace(key.Query))
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, MergedInsight{Category: rec.Category, TaskID: rec.TaskID, Insight: item})
		}
	}
	return out, nil
}
