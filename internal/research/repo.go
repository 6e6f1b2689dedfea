package research

import (
	"context"
	"encoding/json"
)

// Repo defines persistence operations for analysis records.
type Repo interface {
	// Create inserts a single record with status processing.
	Create(ctx context.Context, rec AnalysisRecord) error
	// CreateBatch inserts all records in one transaction; either every
	// record exists afterwards or none do.
	CreateBatch(ctx context.Context, recs []AnalysisRecord) error
	// GetByTask returns the record for (taskID, category).
	GetByTask(ctx context.Context, taskID string, category Category) (AnalysisRecord, error)
	// ListByProject returns a project's records for one category,
	// newest-first.
	ListByProject(ctx context.Context, projectID string, category Category, limit, offset int) ([]AnalysisRecord, error)
	// ListQueries returns the distinct queries launched for a project
	// across all categories.
	ListQueries(ctx context.Context, projectID string) ([]string, error)
	// ListCompletedByProject returns a project's completed records across
	// all categories, newest-first.
	ListCompletedByProject(ctx context.Context, projectID string) ([]AnalysisRecord, error)
	// MarkCompleted writes the terminal completed state. It only applies
	// while the record is still processing.
	MarkCompleted(ctx context.Context, taskID string, insights json.RawMessage, rawResponse string) error
	// MarkError writes the terminal error state. It only applies while the
	// record is still processing.
	MarkError(ctx context.Context, taskID string, message string) error
}
