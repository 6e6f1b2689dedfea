package research

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const recordColumns = `id, task_id, user_id, project_id, category, status, topic, query,
       insights, raw_response, error, created_at, updated_at`

// Create inserts a new analysis record.
func (r *PGRepo) Create(ctx context.Context, rec AnalysisRecord) error {
	const query = `
INSERT INTO research_analyses (
	id, task_id, user_id, project_id, category, status, topic, query, insights, raw_response, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`

	_, err := r.DB.ExecContext(ctx, query,
		rec.ID,
		rec.TaskID,
		rec.UserID,
		rec.ProjectID,
		string(rec.Category),
		rec.Status,
		rec.Topic,
		rec.Query,
		insightsPayload(rec.Insights),
		rec.RawResponse,
		rec.CreatedAt,
	)
	return err
}

// CreateBatch inserts all records inside one transaction.
func (r *PGRepo) CreateBatch(ctx context.Context, recs []AnalysisRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const query = `
INSERT INTO research_analyses (
	id, task_id, user_id, project_id, category, status, topic, query, insights, raw_response, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`

	for _, rec := range recs {
		if _, err := tx.ExecContext(ctx, query,
			rec.ID,
			rec.TaskID,
			rec.UserID,
			rec.ProjectID,
			string(rec.Category),
			rec.Status,
			rec.Topic,
			rec.Query,
			insightsPayload(rec.Insights),
			rec.RawResponse,
			rec.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert record %s: %w", rec.TaskID, err)
		}
	}
	return tx.Commit()
}

// GetByTask returns the record for (taskID, category).
func (r *PGRepo) GetByTask(ctx context.Context, taskID string, category Category) (AnalysisRecord, error) {
	query := `
SELECT ` + recordColumns + `
FROM research_analyses
WHERE task_id = $1 AND category = $2
LIMIT 1`

	row := r.DB.QueryRowContext(ctx, query, taskID, string(category))
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AnalysisRecord{}, ErrNotFound
		}
		return AnalysisRecord{}, err
	}
	return rec, nil
}

// ListByProject lists a project's records for one category, newest-first.
func (r *PGRepo) ListByProject(ctx context.Context, projectID string, category Category, limit, offset int) ([]AnalysisRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `
SELECT ` + recordColumns + `
FROM research_analyses
WHERE project_id = $1 AND category = $2
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

	rows, err := r.DB.QueryContext(ctx, query, projectID, string(category), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AnalysisRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListQueries returns the distinct queries launched for a project.
func (r *PGRepo) ListQueries(ctx context.Context, projectID string) ([]string, error) {
	const query = `
SELECT DISTINCT query
FROM research_analyses
WHERE project_id = $1 AND query <> ''
ORDER BY query`

	rows, err := r.DB.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// ListCompletedByProject returns completed records across all categories.
func (r *PGRepo) ListCompletedByProject(ctx context.Context, projectID string) ([]AnalysisRecord, error) {
	query := `
SELECT ` + recordColumns + `
FROM research_analyses
WHERE project_id = $1 AND status = 'completed'
ORDER BY created_at DESC`

	rows, err := r.DB.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AnalysisRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkCompleted writes the terminal completed state for a processing record.
func (r *PGRepo) MarkCompleted(ctx context.Context, taskID string, insights json.RawMessage, rawResponse string) error {
	const query = `
UPDATE research_analyses
SET status = 'completed',
    insights = $1::jsonb,
    raw_response = $2,
    error = NULL,
    updated_at = now()
WHERE task_id = $3 AND status = 'processing'`

	res, err := r.DB.ExecContext(ctx, query, insightsPayload(insights), rawResponse, taskID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkError writes the terminal error state for a processing record.
func (r *PGRepo) MarkError(ctx context.Context, taskID string, message string) error {
	const query = `
UPDATE research_analyses
SET status = 'error',
    error = $1,
    updated_at = now()
WHERE task_id = $2 AND status = 'processing'`

	res, err := r.DB.ExecContext(ctx, query, message, taskID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (AnalysisRecord, error) {
	var rec AnalysisRecord
	var category string
	var insights sql.NullString
	var rawResponse sql.NullString
	var errMsg sql.NullString

	if err := row.Scan(
		&rec.ID,
		&rec.TaskID,
		&rec.UserID,
		&rec.ProjectID,
		&category,
		&rec.Status,
		&rec.Topic,
		&rec.Query,
		&insights,
		&rawResponse,
		&errMsg,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return AnalysisRecord{}, err
	}

	rec.Category = Category(category)
	rec.Insights = emptyInsights
	if insights.Valid && insights.String != "" {
		rec.Insights = json.RawMessage(insights.String)
	}
	if rawResponse.Valid {
		rec.RawResponse = rawResponse.String
	}
	if errMsg.Valid {
		rec.Error = &errMsg.String
	}
	return rec, nil
}

func insightsPayload(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte(emptyInsights)
	}
	return []byte(raw)
}

var _ Repo = (*PGRepo)(nil)
