package project_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/project"
	"beacon/pkg/platform/sentinel"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown project returns sentinel not found", func(t *testing.T) {
		store := project.NewMemoryStore()
		_, err := store.FindSecret(ctx, "ghost")
		assert.True(t, errors.Is(err, sentinel.ErrNotFound))
	})

	t.Run("seeded project resolves", func(t *testing.T) {
		store := project.NewMemoryStore(project.Project{ID: "p1", Secret: "hunter2"})
		secret, err := store.FindSecret(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "hunter2", secret)
	})

	t.Run("put replaces", func(t *testing.T) {
		store := project.NewMemoryStore(project.Project{ID: "p1", Secret: "old"})
		store.Put(project.Project{ID: "p1", Secret: "new", KeyLabels: map[string]string{"t": "Temp"}})

		p, err := store.Find(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "new", p.Secret)
		assert.Equal(t, "Temp", p.KeyLabels["t"])
	})
}
