package telemetry

import (
	"time"

	dErrors "beacon/pkg/domain-errors"
)

// Category classifies an observation. The set is closed; anything else is
// rejected at the boundary.
type Category string

const (
	CategoryRecord  Category = "record"
	CategoryWarning Category = "warning"
	CategoryError   Category = "error"
)

// ParseCategory validates a wire-level category string.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryRecord, CategoryWarning, CategoryError:
		return Category(s), nil
	}
	return "", dErrors.New(dErrors.CodeBadRequest, "unknown category: "+s)
}

// Event is one timestamped key/value observation from a device. Immutable
// and append-only; ID and ServerReceivedAt are assigned by the store on
// insert. Value is an opaque string at this layer; structured interpretation
// is the caller's responsibility.
type Event struct {
	ID               int64
	ProjectID        string
	DeviceID         string
	SessionID        string
	ClientTimestamp  int64 // device epoch, milliseconds
	Category         Category
	Key              string
	Value            string
	ServerReceivedAt time.Time
}

// Filter narrows a store query. Zero-valued fields are ignored; From/To are
// inclusive bounds on ServerReceivedAt.
type Filter struct {
	ProjectID string
	DeviceID  string
	SessionID string
	Category  Category
	From      time.Time
	To        time.Time
}

// Page bounds a query result. A nil page means everything.
type Page struct {
	Limit  int
	Offset int
}

// Grouping field names accepted by Store.GroupCount.
const (
	GroupByCategory = "category"
	GroupByDevice   = "device_id"
	GroupBySession  = "session_id"
	GroupByKey      = "key"
)

// Group is one bucket of a GroupCount result.
type Group struct {
	Fields        map[string]string
	Count         int64
	MinReceivedAt time.Time
	MaxReceivedAt time.Time
}
