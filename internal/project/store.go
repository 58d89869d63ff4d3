package project

import "context"

// Store resolves projects and their signing secrets. Implementations return
// sentinel.ErrNotFound for unknown project IDs.
type Store interface {
	Find(ctx context.Context, projectID string) (*Project, error)
	FindSecret(ctx context.Context, projectID string) (string, error)
}
