package project

import (
	"context"
	"sync"

	"beacon/pkg/platform/sentinel"
)

// MemoryStore is an in-memory project store for tests and development.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]Project
}

// NewMemoryStore creates a store seeded with the given projects.
func NewMemoryStore(projects ...Project) *MemoryStore {
	s := &MemoryStore{projects: make(map[string]Project, len(projects))}
	for _, p := range projects {
		s.projects[p.ID] = p
	}
	return s
}

// Put registers or replaces a project.
func (s *MemoryStore) Put(p Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
}

func (s *MemoryStore) Find(_ context.Context, projectID string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) FindSecret(ctx context.Context, projectID string) (string, error) {
	p, err := s.Find(ctx, projectID)
	if err != nil {
		return "", err
	}
	return p.Secret, nil
}
