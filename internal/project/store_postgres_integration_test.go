//go:build integration

package project_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/project"
	"beacon/pkg/platform/sentinel"
	"beacon/pkg/testutil/containers"
)

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	pg := containers.NewPostgresContainer(t)
	store := project.NewPostgres(pg.DB)
	require.NoError(t, store.EnsureSchema(ctx))

	t.Run("unknown project returns sentinel not found", func(t *testing.T) {
		_, err := store.FindSecret(ctx, "ghost")
		assert.True(t, errors.Is(err, sentinel.ErrNotFound))
	})

	t.Run("upsert then find round-trips labels", func(t *testing.T) {
		p := project.Project{
			ID:        "p1",
			Secret:    "s3cr3t",
			KeyLabels: map[string]string{"temp": "Temperature"},
		}
		require.NoError(t, store.Upsert(ctx, p))

		got, err := store.Find(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "s3cr3t", got.Secret)
		assert.Equal(t, "Temperature", got.KeyLabels["temp"])

		secret, err := store.FindSecret(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "s3cr3t", secret)
	})

	t.Run("upsert replaces the secret", func(t *testing.T) {
		require.NoError(t, store.Upsert(ctx, project.Project{ID: "p2", Secret: "old"}))
		require.NoError(t, store.Upsert(ctx, project.Project{ID: "p2", Secret: "new"}))

		secret, err := store.FindSecret(ctx, "p2")
		require.NoError(t, err)
		assert.Equal(t, "new", secret)
	})
}
