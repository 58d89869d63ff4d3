package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"beacon/pkg/platform/sentinel"
)

// PostgresStore persists projects in the projects table. Key labels are a
// jsonb column since they are read whole and never queried by key.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a PostgreSQL-backed project store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the projects table if missing. Idempotent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS projects (
			id         TEXT PRIMARY KEY,
			secret     TEXT NOT NULL,
			key_labels JSONB NOT NULL DEFAULT '{}'::jsonb
		);
	`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure projects schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, projectID string) (*Project, error) {
	const query = `SELECT id, secret, key_labels FROM projects WHERE id = $1`

	var p Project
	var labels []byte
	err := s.db.QueryRowContext(ctx, query, projectID).Scan(&p.ID, &p.Secret, &labels)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find project: %w", err)
	}
	if len(labels) > 0 {
		if err := json.Unmarshal(labels, &p.KeyLabels); err != nil {
			return nil, fmt.Errorf("decode key labels: %w", err)
		}
	}
	return &p, nil
}

func (s *PostgresStore) FindSecret(ctx context.Context, projectID string) (string, error) {
	const query = `SELECT secret FROM projects WHERE id = $1`

	var secret string
	err := s.db.QueryRowContext(ctx, query, projectID).Scan(&secret)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find project secret: %w", err)
	}
	return secret, nil
}

// Upsert registers or replaces a project. Used by seeding and admin tooling.
func (s *PostgresStore) Upsert(ctx context.Context, p Project) error {
	labels := []byte("{}")
	if p.KeyLabels != nil {
		var err error
		labels, err = json.Marshal(p.KeyLabels)
		if err != nil {
			return fmt.Errorf("encode key labels: %w", err)
		}
	}
	const query = `
		INSERT INTO projects (id, secret, key_labels)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (id) DO UPDATE SET secret = EXCLUDED.secret, key_labels = EXCLUDED.key_labels
	`
	if _, err := s.db.ExecContext(ctx, query, p.ID, p.Secret, string(labels)); err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}
	return nil
}
