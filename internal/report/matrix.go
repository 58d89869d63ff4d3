package report

import (
	"context"
	"errors"
	"sort"
	"time"

	"beacon/internal/telemetry"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/sentinel"
)

// DateLayout is the calendar-date form used at the report boundary.
const DateLayout = "2006-01-02"

// maxRangeDays caps a range-matrix request. Each day in the range costs one
// store query, so an unbounded range would let a single request fan out
// arbitrarily.
const maxRangeDays = 366

// OrganizationMatrix renders one day of a project's events as a session×key
// pivot: every session is a row, every observed key a column. When multiple
// events in a session share a key, the later-arriving value wins.
func (s *Service) OrganizationMatrix(ctx context.Context, projectID, date string) (*Matrix, error) {
	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	m, err := s.buildDay(ctx, projectID, day)
	if err != nil {
		return nil, err
	}
	labels, err := s.keyLabels(ctx, projectID)
	if err != nil {
		return nil, err
	}
	relabel(m, labels)
	return m, nil
}

// OrganizationMatrixRange builds one matrix per day in [startDate, endDate]
// inclusive, plus a combined matrix over the whole range. A session that
// recurs across days folds into one combined row: its cells merge under the
// same last-write-wins rule and its index is reassigned by start time over
// the entire range, not per day.
func (s *Service) OrganizationMatrixRange(ctx context.Context, projectID, startDate, endDate string) (*RangeMatrix, error) {
	start, err := parseDate(startDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(endDate)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, dErrors.New(dErrors.CodeInvalidRange, "date range start must not be after end")
	}
	if end.Sub(start) > (maxRangeDays-1)*24*time.Hour {
		return nil, dErrors.New(dErrors.CodeInvalidRange, "date range exceeds maximum of 366 days")
	}

	rm := &RangeMatrix{
		ProjectID: projectID,
		StartDate: startDate,
		EndDate:   endDate,
	}
	combined := newMatrixBuilder(projectID, "")
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		m, err := s.buildDay(ctx, projectID, day)
		if err != nil {
			return nil, err
		}
		rm.Days = append(rm.Days, m)
		combined.fold(m)
	}
	rm.Combined = combined.build()

	labels, err := s.keyLabels(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, m := range rm.Days {
		relabel(m, labels)
	}
	relabel(rm.Combined, labels)
	return rm, nil
}

// buildDay is the single-day builder both entry points share. Events arrive
// ordered by receive time, so unconditional cell overwrites implement
// last-write-wins.
func (s *Service) buildDay(ctx context.Context, projectID string, day time.Time) (*Matrix, error) {
	filter := telemetry.Filter{
		ProjectID: projectID,
		From:      day,
		To:        day.Add(24*time.Hour - time.Millisecond),
	}
	events, err := s.events.Query(ctx, filter, nil)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeStoreFailure, "matrix day query", err)
	}

	b := newMatrixBuilder(projectID, day.Format(DateLayout))
	for _, e := range events {
		b.observe(e.SessionID, e.Key, e.Value, e.ServerReceivedAt)
	}
	return b.build(), nil
}

func (s *Service) keyLabels(ctx context.Context, projectID string) (map[string]string, error) {
	if s.projects == nil {
		return nil, nil
	}
	p, err := s.projects.Find(ctx, projectID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeStoreFailure, "resolve key labels", err)
	}
	return p.KeyLabels, nil
}

// matrixBuilder accumulates rows, columns, and cells in observation order.
// It backs both the per-event single-day build and the per-day fold into the
// combined range matrix.
type matrixBuilder struct {
	projectID string
	date      string
	rows      []string
	rowMeta   map[string]RowMeta
	cols      []string
	colSeen   map[string]struct{}
	cells     map[string]map[string]string
}

func newMatrixBuilder(projectID, date string) *matrixBuilder {
	return &matrixBuilder{
		projectID: projectID,
		date:      date,
		rowMeta:   make(map[string]RowMeta),
		colSeen:   make(map[string]struct{}),
		cells:     make(map[string]map[string]string),
	}
}

// observe records one value. The cell is overwritten unconditionally, so
// feeding observations in time order yields last-write-wins; the row keeps
// its earliest observed timestamp.
func (b *matrixBuilder) observe(session, key, value string, at time.Time) {
	b.observeRow(session, at)
	b.registerColumn(key)
	b.cells[session][key] = value
}

func (b *matrixBuilder) registerColumn(key string) {
	if _, ok := b.colSeen[key]; !ok {
		b.colSeen[key] = struct{}{}
		b.cols = append(b.cols, key)
	}
}

// fold merges one day matrix into the accumulator. Columns are registered
// first so the combined column order follows per-day first-seen order rather
// than per-row iteration order. Days must be folded in ascending date order
// for cross-day last-write-wins to hold.
func (b *matrixBuilder) fold(m *Matrix) {
	for _, col := range m.Columns {
		b.registerColumn(col)
	}
	for _, session := range m.Rows {
		meta := m.RowMeta[session]
		for _, col := range m.Columns {
			if v, ok := m.Cells[session][col]; ok {
				b.observe(session, col, v, meta.FirstSeenAt)
			}
		}
		// Sessions can exist without cells only when every event lacked a
		// key; still surface the row.
		if len(m.Cells[session]) == 0 {
			b.observeRow(session, meta.FirstSeenAt)
		}
	}
}

func (b *matrixBuilder) observeRow(session string, at time.Time) {
	meta, ok := b.rowMeta[session]
	if !ok {
		b.rows = append(b.rows, session)
		meta = RowMeta{FirstSeenAt: at}
		b.cells[session] = make(map[string]string)
	} else if at.Before(meta.FirstSeenAt) {
		meta.FirstSeenAt = at
	}
	b.rowMeta[session] = meta
}

// build orders rows by first-observed time ascending and assigns 1-based
// display indexes.
func (b *matrixBuilder) build() *Matrix {
	sort.SliceStable(b.rows, func(i, j int) bool {
		return b.rowMeta[b.rows[i]].FirstSeenAt.Before(b.rowMeta[b.rows[j]].FirstSeenAt)
	})
	for i, session := range b.rows {
		meta := b.rowMeta[session]
		meta.Index = i + 1
		b.rowMeta[session] = meta
	}

	m := &Matrix{
		ProjectID: b.projectID,
		Date:      b.date,
		Rows:      b.rows,
		Columns:   b.cols,
		Cells:     b.cells,
		RowMeta:   b.rowMeta,
	}
	if m.Rows == nil {
		m.Rows = []string{}
	}
	if m.Columns == nil {
		m.Columns = []string{}
	}
	return m
}

// relabel applies an external key→display-label mapping to the column set
// and cell keys. Unmapped keys pass through unchanged.
func relabel(m *Matrix, labels map[string]string) {
	if len(labels) == 0 {
		return
	}
	for i, col := range m.Columns {
		if label, ok := labels[col]; ok {
			m.Columns[i] = label
		}
	}
	for session, row := range m.Cells {
		renamed := make(map[string]string, len(row))
		for key, value := range row {
			if label, ok := labels[key]; ok {
				key = label
			}
			renamed[key] = value
		}
		m.Cells[session] = renamed
	}
}

func parseDate(date string) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, date, time.UTC)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeBadRequest, "invalid date, want YYYY-MM-DD: "+date)
	}
	return day, nil
}
