package projects

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// GetByID returns a project by ID.
func (r *PGRepo) GetByID(ctx context.Context, projectID string) (Project, error) {
	const query = `
SELECT id, user_id, name, created_at
FROM projects
WHERE id = $1
LIMIT 1`

	var p Project
	err := r.DB.QueryRowContext(ctx, query, projectID).Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, err
	}
	return p, nil
}

var _ Repo = (*PGRepo)(nil)
