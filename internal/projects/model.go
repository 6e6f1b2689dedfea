package projects

import "time"

// Project is the slice of the catalog collaborator's project record the
// pipeline needs: identity plus the owning user for authorization checks.
type Project struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
