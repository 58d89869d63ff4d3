// Package memory provides an in-memory telemetry store for tests and
// single-process development. Semantics mirror the postgres implementation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"beacon/internal/telemetry"
)

// Store is a mutex-guarded, append-only slice of events.
type Store struct {
	mu     sync.RWMutex
	events []telemetry.Event
	nextID int64

	// now is swappable so tests can control ServerReceivedAt.
	now func() time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{nextID: 1, now: time.Now}
}

// WithClock overrides the receive-time source. Test hook.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Insert(_ context.Context, event *telemetry.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.ID = s.nextID
	s.nextID++
	if event.ServerReceivedAt.IsZero() {
		event.ServerReceivedAt = s.now().UTC()
	}
	s.events = append(s.events, *event)
	return nil
}

func (s *Store) Query(_ context.Context, filter telemetry.Filter, page *telemetry.Page) ([]telemetry.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []telemetry.Event
	for _, e := range s.events {
		if matches(e, filter) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ServerReceivedAt.Equal(out[j].ServerReceivedAt) {
			return out[i].ServerReceivedAt.Before(out[j].ServerReceivedAt)
		}
		return out[i].ID < out[j].ID
	})

	if page != nil {
		if page.Offset >= len(out) {
			return nil, nil
		}
		out = out[page.Offset:]
		if page.Limit > 0 && page.Limit < len(out) {
			out = out[:page.Limit]
		}
	}
	return out, nil
}

func (s *Store) Count(_ context.Context, filter telemetry.Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.events {
		if matches(e, filter) {
			n++
		}
	}
	return n, nil
}

func (s *Store) GroupCount(_ context.Context, filter telemetry.Filter, groupBy []string) ([]telemetry.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type bucket struct {
		group telemetry.Group
		order int
	}
	buckets := make(map[string]*bucket)

	for _, e := range s.events {
		if !matches(e, filter) {
			continue
		}
		fields := make(map[string]string, len(groupBy))
		key := ""
		for _, g := range groupBy {
			v, err := fieldValue(e, g)
			if err != nil {
				return nil, err
			}
			fields[g] = v
			key += v + "\x00"
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{
				group: telemetry.Group{
					Fields:        fields,
					MinReceivedAt: e.ServerReceivedAt,
					MaxReceivedAt: e.ServerReceivedAt,
				},
				order: len(buckets),
			}
			buckets[key] = b
		}
		b.group.Count++
		if e.ServerReceivedAt.Before(b.group.MinReceivedAt) {
			b.group.MinReceivedAt = e.ServerReceivedAt
		}
		if e.ServerReceivedAt.After(b.group.MaxReceivedAt) {
			b.group.MaxReceivedAt = e.ServerReceivedAt
		}
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].order < ordered[j].order })

	out := make([]telemetry.Group, 0, len(ordered))
	for _, b := range ordered {
		out = append(out, b.group)
	}
	return out, nil
}

func matches(e telemetry.Event, f telemetry.Filter) bool {
	if f.ProjectID != "" && e.ProjectID != f.ProjectID {
		return false
	}
	if f.DeviceID != "" && e.DeviceID != f.DeviceID {
		return false
	}
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if !f.From.IsZero() && e.ServerReceivedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.ServerReceivedAt.After(f.To) {
		return false
	}
	return true
}

func fieldValue(e telemetry.Event, field string) (string, error) {
	switch field {
	case telemetry.GroupByCategory:
		return string(e.Category), nil
	case telemetry.GroupByDevice:
		return e.DeviceID, nil
	case telemetry.GroupBySession:
		return e.SessionID, nil
	case telemetry.GroupByKey:
		return e.Key, nil
	}
	return "", errUnknownGroupField(field)
}

type errUnknownGroupField string

func (e errUnknownGroupField) Error() string {
	return "unknown group field: " + string(e)
}
