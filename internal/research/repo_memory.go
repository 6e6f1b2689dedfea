package research

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores analysis records in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu     sync.RWMutex
	byTask map[string]AnalysisRecord
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byTask: make(map[string]AnalysisRecord)}
}

// Create stores the record.
func (r *MemoryRepo) Create(ctx context.Context, rec AnalysisRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byTask[rec.TaskID] = rec
	return nil
}

// CreateBatch stores all records.
func (r *MemoryRepo) CreateBatch(ctx context.Context, recs []AnalysisRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range recs {
		r.byTask[rec.TaskID] = rec
	}
	return nil
}

// GetByTask returns the record for (taskID, category).
func (r *MemoryRepo) GetByTask(ctx context.Context, taskID string, category Category) (AnalysisRecord, error) {
	if err := ctx.Err(); err != nil {
		return AnalysisRecord{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byTask[taskID]
	if !ok || rec.Category != category {
		return AnalysisRecord{}, ErrNotFound
	}
	return rec, nil
}

// ListByProject lists a project's records for one category, newest-first.
func (r *MemoryRepo) ListByProject(ctx context.Context, projectID string, category Category, limit, offset int) ([]AnalysisRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	var matched []AnalysisRecord
	for _, rec := range r.byTask {
		if rec.ProjectID == projectID && rec.Category == category {
			matched = append(matched, rec)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// ListQueries returns the distinct queries launched for a project.
func (r *MemoryRepo) ListQueries(ctx context.Context, projectID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	seen := make(map[string]struct{})
	for _, rec := range r.byTask {
		if rec.ProjectID == projectID && rec.Query != "" {
			seen[rec.Query] = struct{}{}
		}
	}
	r.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for q := range seen {
		out = append(out, q)
	}
	sort.Strings(out)
	return out, nil
}

// ListCompletedByProject returns completed records across all categories.
func (r *MemoryRepo) ListCompletedByProject(ctx context.Context, projectID string) ([]AnalysisRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var matched []AnalysisRecord
	for _, rec := range r.byTask {
		if rec.ProjectID == projectID && rec.Status == StatusCompleted {
			matched = append(matched, rec)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched, nil
}

// MarkCompleted writes the terminal completed state for a processing record.
func (r *MemoryRepo) MarkCompleted(ctx context.Context, taskID string, insights json.RawMessage, rawResponse string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byTask[taskID]
	if !ok || rec.Status != StatusProcessing {
		return ErrNotFound
	}
	if len(insights) == 0 {
		insights = emptyInsights
	}
	rec.Status = StatusCompleted
	rec.Insights = insights
	rec.RawResponse = rawResponse
	rec.Error = nil
	rec.UpdatedAt = time.Now().UTC()
	r.byTask[taskID] = rec
	return nil
}

// MarkError writes the terminal error state for a processing record.
func (r *MemoryRepo) MarkError(ctx context.Context, taskID string, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byTask[taskID]
	if !ok || rec.Status != StatusProcessing {
		return ErrNotFound
	}
	rec.Status = StatusError
	rec.Error = &message
	rec.UpdatedAt = time.Now().UTC()
	r.byTask[taskID] = rec
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
