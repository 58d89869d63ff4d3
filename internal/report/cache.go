package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"beacon/internal/cache"
	"beacon/internal/platform/metrics"
	"beacon/pkg/platform/sentinel"
)

// Reports is the surface the transport layer consumes; Service and
// CachedService both satisfy it.
type Reports interface {
	ByDevice(ctx context.Context, deviceID string) (*DeviceReport, error)
	ByTimeRange(ctx context.Context, start, end time.Time) (*TimeRangeReport, error)
	Errors(ctx context.Context) (*ErrorReport, error)
	OrganizationMatrix(ctx context.Context, projectID, date string) (*Matrix, error)
	OrganizationMatrixRange(ctx context.Context, projectID, startDate, endDate string) (*RangeMatrix, error)
}

// CachedService decorates the aggregation engine with cache-aside reads.
// Cache failures never fail a request: a broken cache degrades the facade to
// always-compute. Concurrent misses on one key are collapsed with
// singleflight; that is an efficiency measure, duplicate computation would
// be harmless.
type CachedService struct {
	inner   Reports
	cache   cache.Cache
	logger  *slog.Logger
	metrics *metrics.Metrics

	reportTTL   time.Duration
	historicTTL time.Duration

	group singleflight.Group
	now   func() time.Time
}

// NewCached wraps the aggregation engine with a result cache. metrics may be
// nil (tests).
func NewCached(inner Reports, c cache.Cache, logger *slog.Logger, m *metrics.Metrics, reportTTL, historicTTL time.Duration) *CachedService {
	return &CachedService{
		inner:       inner,
		cache:       c,
		logger:      logger,
		metrics:     m,
		reportTTL:   reportTTL,
		historicTTL: historicTTL,
		now:         time.Now,
	}
}

// WithClock overrides the clock used to classify historical dates. Test hook.
func (s *CachedService) WithClock(now func() time.Time) *CachedService {
	s.now = now
	return s
}

func (s *CachedService) ByDevice(ctx context.Context, deviceID string) (*DeviceReport, error) {
	key := "report:device:" + deviceID
	return cached(ctx, s, "device", key, s.reportTTL, func() (*DeviceReport, error) {
		return s.inner.ByDevice(ctx, deviceID)
	})
}

func (s *CachedService) ByTimeRange(ctx context.Context, start, end time.Time) (*TimeRangeReport, error) {
	key := fmt.Sprintf("report:range:%d:%d", start.UnixMilli(), end.UnixMilli())
	return cached(ctx, s, "range", key, s.reportTTL, func() (*TimeRangeReport, error) {
		return s.inner.ByTimeRange(ctx, start, end)
	})
}

func (s *CachedService) Errors(ctx context.Context) (*ErrorReport, error) {
	return cached(ctx, s, "errors", "report:errors", s.reportTTL, func() (*ErrorReport, error) {
		return s.inner.Errors(ctx)
	})
}

func (s *CachedService) OrganizationMatrix(ctx context.Context, projectID, date string) (*Matrix, error) {
	key := "matrix:" + projectID + ":" + date
	return cached(ctx, s, "matrix", key, s.matrixTTL(date), func() (*Matrix, error) {
		return s.inner.OrganizationMatrix(ctx, projectID, date)
	})
}

func (s *CachedService) OrganizationMatrixRange(ctx context.Context, projectID, startDate, endDate string) (*RangeMatrix, error) {
	key := "matrix:" + projectID + ":" + startDate + ":" + endDate
	return cached(ctx, s, "matrix_range", key, s.matrixTTL(endDate), func() (*RangeMatrix, error) {
		return s.inner.OrganizationMatrixRange(ctx, projectID, startDate, endDate)
	})
}

// matrixTTL scales expiry to volatility: a matrix whose latest date is fully
// elapsed can no longer change and gets the long TTL.
func (s *CachedService) matrixTTL(lastDate string) time.Duration {
	day, err := time.ParseInLocation(DateLayout, lastDate, time.UTC)
	if err != nil {
		// Invalid dates fail in the inner computation; the TTL choice
		// is irrelevant.
		return s.reportTTL
	}
	if day.Add(24 * time.Hour).After(s.now().UTC()) {
		return s.reportTTL
	}
	return s.historicTTL
}

// cached is the cache-aside read shared by all report kinds: attempt a read,
// return the hit, otherwise compute once per key, store, and return. Cache
// read and write errors are logged and swallowed.
func cached[T any](ctx context.Context, s *CachedService, kind, key string, ttl time.Duration, compute func() (T, error)) (T, error) {
	var zero T
	if s.cache == nil {
		return compute()
	}

	raw, err := s.cache.Get(ctx, key)
	if err == nil {
		var value T
		if err := json.Unmarshal(raw, &value); err == nil {
			s.countHit(kind)
			return value, nil
		}
		// Undecodable entry: fall through and recompute over it.
	} else if !errors.Is(err, sentinel.ErrCacheMiss) {
		s.logger.Warn("report cache read failed", "key", key, "error", err.Error())
	}
	s.countMiss(kind)

	result, err, _ := s.group.Do(key, func() (any, error) {
		value, err := compute()
		if err != nil {
			return zero, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return value, nil
		}
		if err := s.cache.Set(ctx, key, raw, ttl); err != nil {
			s.logger.Warn("report cache write failed", "key", key, "error", err.Error())
		}
		return value, nil
	})
	if err != nil {
		return zero, err
	}
	return result.(T), nil
}

func (s *CachedService) countHit(kind string) {
	if s.metrics != nil {
		s.metrics.CacheHits.WithLabelValues(kind).Inc()
	}
}

func (s *CachedService) countMiss(kind string) {
	if s.metrics != nil {
		s.metrics.CacheMisses.WithLabelValues(kind).Inc()
	}
}
