package report

import "time"

// DeviceReport summarizes one device's observations. A device with no events
// gets a zero-valued report, never an error. Time bounds are zero when empty.
type DeviceReport struct {
	DeviceID     string    `json:"deviceId"`
	TotalCount   int64     `json:"totalCount"`
	RecordCount  int64     `json:"recordCount"`
	WarningCount int64     `json:"warningCount"`
	ErrorCount   int64     `json:"errorCount"`
	EarliestAt   time.Time `json:"earliestAt,omitzero"`
	LatestAt     time.Time `json:"latestAt,omitzero"`
}

// TimeRangeReport totals observations by category over an inclusive range,
// plus how many distinct devices reported in it.
type TimeRangeReport struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	TotalCount      int64     `json:"totalCount"`
	RecordCount     int64     `json:"recordCount"`
	WarningCount    int64     `json:"warningCount"`
	ErrorCount      int64     `json:"errorCount"`
	DistinctDevices int       `json:"distinctDevices"`
}

// ErrorGroup is one (device, key) error bucket.
type ErrorGroup struct {
	DeviceID   string    `json:"deviceId"`
	Key        string    `json:"key"`
	Count      int64     `json:"count"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// ErrorReport lists error buckets ordered by frequency descending.
// TotalCount equals the sum of all bucket counts.
type ErrorReport struct {
	Groups     []ErrorGroup `json:"groups"`
	TotalCount int64        `json:"totalCount"`
}

// RowMeta orders an opaque session identifier for display: a 1-based index
// by session start time, and the start time itself.
type RowMeta struct {
	Index       int       `json:"index"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
}

// Matrix is the session×key pivot view. Rows are session IDs ordered by
// first-observed time ascending; Columns are observed keys in first-seen
// order; Cells hold the last-written value per (session, key).
type Matrix struct {
	ProjectID string                       `json:"projectId"`
	Date      string                       `json:"date,omitempty"` // empty for a combined range matrix
	Rows      []string                     `json:"rows"`
	Columns   []string                     `json:"columns"`
	Cells     map[string]map[string]string `json:"cells"`
	RowMeta   map[string]RowMeta           `json:"rowMeta"`
}

// RangeMatrix is the multi-day view: one matrix per day plus one combined
// matrix whose rows are re-indexed over the whole range.
type RangeMatrix struct {
	ProjectID string    `json:"projectId"`
	StartDate string    `json:"startDate"`
	EndDate   string    `json:"endDate"`
	Days      []*Matrix `json:"days"`
	Combined  *Matrix   `json:"combined"`
}
