// Package report reshapes the flat event stream into rollups and the
// session×key organization matrix. All computations here are pure reads over
// the event store; caching is layered on top as a decorator.
package report

import (
	"context"
	"sort"
	"time"

	"beacon/internal/project"
	"beacon/internal/telemetry"
	dErrors "beacon/pkg/domain-errors"
)

// Service is the aggregation engine. It holds no cross-request state; every
// method is a request-scoped read.
type Service struct {
	events   telemetry.Store
	projects project.Store
}

// NewService creates the aggregation engine. The project store supplies the
// optional key→display-label mapping for matrices.
func NewService(events telemetry.Store, projects project.Store) *Service {
	return &Service{events: events, projects: projects}
}

// ByDevice groups one device's events by category. Devices with no events
// yield a zero-valued report.
func (s *Service) ByDevice(ctx context.Context, deviceID string) (*DeviceReport, error) {
	groups, err := s.events.GroupCount(ctx,
		telemetry.Filter{DeviceID: deviceID},
		[]string{telemetry.GroupByCategory},
	)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeStoreFailure, "device report query", err)
	}

	r := &DeviceReport{DeviceID: deviceID}
	for _, g := range groups {
		addCategoryCount(g.Fields[telemetry.GroupByCategory], g.Count,
			&r.TotalCount, &r.RecordCount, &r.WarningCount, &r.ErrorCount)
		if r.EarliestAt.IsZero() || g.MinReceivedAt.Before(r.EarliestAt) {
			r.EarliestAt = g.MinReceivedAt
		}
		if g.MaxReceivedAt.After(r.LatestAt) {
			r.LatestAt = g.MaxReceivedAt
		}
	}
	return r, nil
}

// ByTimeRange totals events by category over [start, end], both inclusive,
// plus the distinct device count over the same filter. The range must be
// strictly ordered; equal instants are rejected as degenerate before the
// store is touched.
func (s *Service) ByTimeRange(ctx context.Context, start, end time.Time) (*TimeRangeReport, error) {
	if !start.Before(end) {
		return nil, dErrors.New(dErrors.CodeInvalidRange, "range start must be before end")
	}

	filter := telemetry.Filter{From: start, To: end}
	groups, err := s.events.GroupCount(ctx, filter, []string{telemetry.GroupByCategory})
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeStoreFailure, "time range report query", err)
	}

	r := &TimeRangeReport{Start: start, End: end}
	for _, g := range groups {
		addCategoryCount(g.Fields[telemetry.GroupByCategory], g.Count,
			&r.TotalCount, &r.RecordCount, &r.WarningCount, &r.ErrorCount)
	}

	devices, err := s.events.GroupCount(ctx, filter, []string{telemetry.GroupByDevice})
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeStoreFailure, "distinct device query", err)
	}
	r.DistinctDevices = len(devices)
	return r, nil
}

// Errors buckets error-category events by (device, key), ordered by count
// descending with a stable (device, key) tie-break.
func (s *Service) Errors(ctx context.Context) (*ErrorReport, error) {
	groups, err := s.events.GroupCount(ctx,
		telemetry.Filter{Category: telemetry.CategoryError},
		[]string{telemetry.GroupByDevice, telemetry.GroupByKey},
	)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeStoreFailure, "error report query", err)
	}

	r := &ErrorReport{Groups: make([]ErrorGroup, 0, len(groups))}
	for _, g := range groups {
		r.Groups = append(r.Groups, ErrorGroup{
			DeviceID:   g.Fields[telemetry.GroupByDevice],
			Key:        g.Fields[telemetry.GroupByKey],
			Count:      g.Count,
			LastSeenAt: g.MaxReceivedAt,
		})
		r.TotalCount += g.Count
	}
	sort.SliceStable(r.Groups, func(i, j int) bool {
		a, b := r.Groups[i], r.Groups[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.DeviceID != b.DeviceID {
			return a.DeviceID < b.DeviceID
		}
		return a.Key < b.Key
	})
	return r, nil
}

func addCategoryCount(category string, count int64, total, records, warnings, errCount *int64) {
	*total += count
	switch telemetry.Category(category) {
	case telemetry.CategoryRecord:
		*records += count
	case telemetry.CategoryWarning:
		*warnings += count
	case telemetry.CategoryError:
		*errCount += count
	}
}
