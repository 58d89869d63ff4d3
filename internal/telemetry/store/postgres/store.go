// Package postgres implements the telemetry store on PostgreSQL via the pgx
// stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"beacon/internal/telemetry"
)

// Store persists events in the telemetry_events table.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL-backed telemetry store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the events table and its query indexes if missing.
// Idempotent; called once at startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS telemetry_events (
			id                 BIGSERIAL PRIMARY KEY,
			project_id         TEXT        NOT NULL,
			device_id          TEXT        NOT NULL,
			session_id         TEXT        NOT NULL,
			client_timestamp   BIGINT      NOT NULL,
			category           TEXT        NOT NULL,
			key                TEXT        NOT NULL,
			value              TEXT        NOT NULL,
			server_received_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_telemetry_events_project_received
			ON telemetry_events (project_id, server_received_at);
		CREATE INDEX IF NOT EXISTS idx_telemetry_events_device
			ON telemetry_events (device_id);
		CREATE INDEX IF NOT EXISTS idx_telemetry_events_category
			ON telemetry_events (category);
	`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure telemetry schema: %w", err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, event *telemetry.Event) error {
	const query = `
		INSERT INTO telemetry_events
			(project_id, device_id, session_id, client_timestamp, category, key, value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, server_received_at
	`
	err := s.db.QueryRowContext(ctx, query,
		event.ProjectID,
		event.DeviceID,
		event.SessionID,
		event.ClientTimestamp,
		string(event.Category),
		event.Key,
		event.Value,
	).Scan(&event.ID, &event.ServerReceivedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, filter telemetry.Filter, page *telemetry.Page) ([]telemetry.Event, error) {
	where, args := buildWhere(filter)
	query := `
		SELECT id, project_id, device_id, session_id, client_timestamp,
		       category, key, value, server_received_at
		FROM telemetry_events
	` + where + `
		ORDER BY server_received_at ASC, id ASC
	`
	if page != nil {
		if page.Limit > 0 {
			args = append(args, page.Limit)
			query += fmt.Sprintf(" LIMIT $%d", len(args))
		}
		if page.Offset > 0 {
			args = append(args, page.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []telemetry.Event
	for rows.Next() {
		var e telemetry.Event
		var category string
		if err := rows.Scan(
			&e.ID, &e.ProjectID, &e.DeviceID, &e.SessionID,
			&e.ClientTimestamp, &category, &e.Key, &e.Value, &e.ServerReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Category = telemetry.Category(category)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func (s *Store) Count(ctx context.Context, filter telemetry.Filter) (int64, error) {
	where, args := buildWhere(filter)
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM telemetry_events"+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (s *Store) GroupCount(ctx context.Context, filter telemetry.Filter, groupBy []string) ([]telemetry.Group, error) {
	cols, err := groupColumns(groupBy)
	if err != nil {
		return nil, err
	}
	where, args := buildWhere(filter)

	colList := strings.Join(cols, ", ")
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*), MIN(server_received_at), MAX(server_received_at)
		FROM telemetry_events
		%s
		GROUP BY %s
		ORDER BY MIN(server_received_at) ASC
	`, colList, where, colList)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("group count events: %w", err)
	}
	defer rows.Close()

	var groups []telemetry.Group
	for rows.Next() {
		values := make([]string, len(cols))
		dest := make([]any, 0, len(cols)+3)
		for i := range values {
			dest = append(dest, &values[i])
		}
		var count int64
		var minAt, maxAt time.Time
		dest = append(dest, &count, &minAt, &maxAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		fields := make(map[string]string, len(cols))
		for i, g := range groupBy {
			fields[g] = values[i]
		}
		groups = append(groups, telemetry.Group{
			Fields:        fields,
			Count:         count,
			MinReceivedAt: minAt,
			MaxReceivedAt: maxAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}

// groupColumns maps the store-level grouping fields onto columns. The
// whitelist keeps caller input out of the SQL text.
func groupColumns(groupBy []string) ([]string, error) {
	cols := make([]string, 0, len(groupBy))
	for _, g := range groupBy {
		switch g {
		case telemetry.GroupByCategory, telemetry.GroupByDevice,
			telemetry.GroupBySession, telemetry.GroupByKey:
			cols = append(cols, g)
		default:
			return nil, fmt.Errorf("unknown group field: %s", g)
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("group count requires at least one field")
	}
	return cols, nil
}

func buildWhere(f telemetry.Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.ProjectID != "" {
		add("project_id = $%d", f.ProjectID)
	}
	if f.DeviceID != "" {
		add("device_id = $%d", f.DeviceID)
	}
	if f.SessionID != "" {
		add("session_id = $%d", f.SessionID)
	}
	if f.Category != "" {
		add("category = $%d", string(f.Category))
	}
	if !f.From.IsZero() {
		add("server_received_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("server_received_at <= $%d", f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
