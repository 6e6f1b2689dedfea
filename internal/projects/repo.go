package projects

import (
	"context"
	"errors"
)

// ErrNotFound indicates the project does not exist.
var ErrNotFound = errors.New("project not found")

// Repo reads project records. Project CRUD lives in the catalog service;
// this API only reads identifiers and ownership.
type Repo interface {
	GetByID(ctx context.Context, projectID string) (Project, error)
}
