package telemetry

import "context"

// Store is the append-only event store. Query results are ordered by
// ServerReceivedAt ascending, then ID ascending, so later-arriving events for
// the same key reliably come last.
type Store interface {
	// Insert appends the event, assigning ID and ServerReceivedAt.
	Insert(ctx context.Context, event *Event) error

	// Query returns events matching the filter, optionally paginated.
	Query(ctx context.Context, filter Filter, page *Page) ([]Event, error)

	// Count returns the number of events matching the filter.
	Count(ctx context.Context, filter Filter) (int64, error)

	// GroupCount buckets matching events by the given fields, returning per
	// bucket count and min/max ServerReceivedAt.
	GroupCount(ctx context.Context, filter Filter, groupBy []string) ([]Group, error)
}
