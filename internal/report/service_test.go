package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/report"
	"beacon/internal/telemetry"
	"beacon/internal/telemetry/store/memory"
	dErrors "beacon/pkg/domain-errors"
)

func at(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func seed(t *testing.T, store *memory.Store, events ...telemetry.Event) {
	t.Helper()
	ctx := context.Background()
	for i := range events {
		require.NoError(t, store.Insert(ctx, &events[i]))
	}
}

func event(device, session string, category telemetry.Category, key, value string, receivedMs int64) telemetry.Event {
	return telemetry.Event{
		ProjectID:        "p1",
		DeviceID:         device,
		SessionID:        session,
		ClientTimestamp:  receivedMs,
		Category:         category,
		Key:              key,
		Value:            value,
		ServerReceivedAt: at(receivedMs),
	}
}

func TestByDevice(t *testing.T) {
	ctx := context.Background()

	t.Run("device with no events yields zero report, not an error", func(t *testing.T) {
		svc := report.NewService(memory.New(), nil)
		rep, err := svc.ByDevice(ctx, "ghost")
		require.NoError(t, err)
		assert.Equal(t, "ghost", rep.DeviceID)
		assert.Zero(t, rep.TotalCount)
		assert.True(t, rep.EarliestAt.IsZero())
		assert.True(t, rep.LatestAt.IsZero())
	})

	t.Run("totals equal sum of category counts", func(t *testing.T) {
		store := memory.New()
		seed(t, store,
			event("dev-1", "s1", telemetry.CategoryRecord, "temp", "20", 1000),
			event("dev-1", "s1", telemetry.CategoryRecord, "temp", "21", 2000),
			event("dev-1", "s1", telemetry.CategoryWarning, "fan", "slow", 3000),
			event("dev-1", "s2", telemetry.CategoryError, "disk", "full", 4000),
			event("dev-2", "s3", telemetry.CategoryError, "disk", "full", 5000),
		)
		svc := report.NewService(store, nil)

		rep, err := svc.ByDevice(ctx, "dev-1")
		require.NoError(t, err)
		assert.Equal(t, int64(4), rep.TotalCount)
		assert.Equal(t, int64(2), rep.RecordCount)
		assert.Equal(t, int64(1), rep.WarningCount)
		assert.Equal(t, int64(1), rep.ErrorCount)
		assert.Equal(t, rep.RecordCount+rep.WarningCount+rep.ErrorCount, rep.TotalCount)
	})

	t.Run("time bounds span all categories combined", func(t *testing.T) {
		store := memory.New()
		seed(t, store,
			event("dev-1", "s1", telemetry.CategoryError, "disk", "full", 1000),
			event("dev-1", "s1", telemetry.CategoryRecord, "temp", "20", 2000),
			event("dev-1", "s1", telemetry.CategoryWarning, "fan", "slow", 9000),
		)
		svc := report.NewService(store, nil)

		rep, err := svc.ByDevice(ctx, "dev-1")
		require.NoError(t, err)
		assert.Equal(t, at(1000), rep.EarliestAt)
		assert.Equal(t, at(9000), rep.LatestAt)
	})
}

func TestByTimeRange(t *testing.T) {
	ctx := context.Background()

	t.Run("equal instants rejected before the store is touched", func(t *testing.T) {
		spy := &spyStore{inner: memory.New()}
		svc := report.NewService(spy, nil)

		_, err := svc.ByTimeRange(ctx, at(5000), at(5000))
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidRange))
		assert.Zero(t, spy.calls)
	})

	t.Run("inverted range rejected", func(t *testing.T) {
		svc := report.NewService(memory.New(), nil)
		_, err := svc.ByTimeRange(ctx, at(9000), at(1000))
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidRange))
	})

	t.Run("range is inclusive on both ends", func(t *testing.T) {
		store := memory.New()
		seed(t, store,
			event("dev-1", "s1", telemetry.CategoryRecord, "temp", "20", 1000),
			event("dev-2", "s2", telemetry.CategoryRecord, "temp", "21", 5000),
			event("dev-3", "s3", telemetry.CategoryRecord, "temp", "22", 9000),
			event("dev-4", "s4", telemetry.CategoryRecord, "temp", "23", 9001),
		)
		svc := report.NewService(store, nil)

		rep, err := svc.ByTimeRange(ctx, at(1000), at(9000))
		require.NoError(t, err)
		assert.Equal(t, int64(3), rep.TotalCount)
		assert.Equal(t, 3, rep.DistinctDevices)
	})

	t.Run("distinct devices deduplicates", func(t *testing.T) {
		store := memory.New()
		seed(t, store,
			event("dev-1", "s1", telemetry.CategoryRecord, "temp", "20", 1000),
			event("dev-1", "s1", telemetry.CategoryError, "disk", "full", 2000),
			event("dev-2", "s2", telemetry.CategoryWarning, "fan", "slow", 3000),
		)
		svc := report.NewService(store, nil)

		rep, err := svc.ByTimeRange(ctx, at(0), at(10000))
		require.NoError(t, err)
		assert.Equal(t, int64(3), rep.TotalCount)
		assert.Equal(t, 2, rep.DistinctDevices)
		assert.Equal(t, rep.RecordCount+rep.WarningCount+rep.ErrorCount, rep.TotalCount)
	})
}

func TestErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("groups ordered by frequency descending with stable ties", func(t *testing.T) {
		store := memory.New()
		seed(t, store,
			event("dev-1", "s1", telemetry.CategoryError, "disk", "full", 1000),
			event("dev-1", "s1", telemetry.CategoryError, "disk", "full", 2000),
			event("dev-1", "s1", telemetry.CategoryError, "disk", "full", 3000),
			event("dev-2", "s2", telemetry.CategoryError, "net", "down", 4000),
			event("dev-1", "s1", telemetry.CategoryError, "net", "down", 5000),
			// Non-error categories must not contribute.
			event("dev-9", "s9", telemetry.CategoryRecord, "disk", "ok", 6000),
		)
		svc := report.NewService(store, nil)

		rep, err := svc.Errors(ctx)
		require.NoError(t, err)
		require.Len(t, rep.Groups, 3)

		assert.Equal(t, "dev-1", rep.Groups[0].DeviceID)
		assert.Equal(t, "disk", rep.Groups[0].Key)
		assert.Equal(t, int64(3), rep.Groups[0].Count)
		assert.Equal(t, at(3000), rep.Groups[0].LastSeenAt)

		// dev-1/net and dev-2/net tie at one each; device ID breaks the tie.
		assert.Equal(t, "dev-1", rep.Groups[1].DeviceID)
		assert.Equal(t, "dev-2", rep.Groups[2].DeviceID)

		assert.Equal(t, int64(5), rep.TotalCount)
	})

	t.Run("empty stream yields empty report", func(t *testing.T) {
		svc := report.NewService(memory.New(), nil)
		rep, err := svc.Errors(ctx)
		require.NoError(t, err)
		assert.Empty(t, rep.Groups)
		assert.Zero(t, rep.TotalCount)
	})
}

// spyStore counts store invocations so tests can assert validation happens
// before any query.
type spyStore struct {
	inner telemetry.Store
	calls int
}

func (s *spyStore) Insert(ctx context.Context, e *telemetry.Event) error {
	s.calls++
	return s.inner.Insert(ctx, e)
}

func (s *spyStore) Query(ctx context.Context, f telemetry.Filter, p *telemetry.Page) ([]telemetry.Event, error) {
	s.calls++
	return s.inner.Query(ctx, f, p)
}

func (s *spyStore) Count(ctx context.Context, f telemetry.Filter) (int64, error) {
	s.calls++
	return s.inner.Count(ctx, f)
}

func (s *spyStore) GroupCount(ctx context.Context, f telemetry.Filter, g []string) ([]telemetry.Group, error) {
	s.calls++
	return s.inner.GroupCount(ctx, f, g)
}
