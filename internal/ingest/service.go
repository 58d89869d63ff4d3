// Package ingest is the write path: verify a signed submission, then hand it
// to the event store. Verification failures are counted by internal reason
// even though transport reports them as one generic category.
package ingest

import (
	"context"
	"log/slog"

	"beacon/internal/platform/metrics"
	"beacon/internal/signing"
	"beacon/internal/telemetry"
	dErrors "beacon/pkg/domain-errors"
)

// Service runs the ingestion pipeline for one submission at a time.
type Service struct {
	verifier *signing.Verifier
	events   telemetry.Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewService creates the ingestion service. metrics may be nil (tests).
func NewService(verifier *signing.Verifier, events telemetry.Store, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{verifier: verifier, events: events, logger: logger, metrics: m}
}

// Submit authenticates the submission and appends it to the event store,
// returning the stored event with its assigned ID and receive time.
func (s *Service) Submit(ctx context.Context, event telemetry.Event, timestamp int64, signature string) (*telemetry.Event, error) {
	if _, err := s.verifier.Verify(ctx, event, timestamp, signature); err != nil {
		reason := string(dErrors.CodeOf(err))
		s.logger.Warn("submission rejected",
			"project_id", event.ProjectID,
			"device_id", event.DeviceID,
			"reason", reason,
		)
		if s.metrics != nil {
			s.metrics.EventsRejected.WithLabelValues(reason).Inc()
		}
		return nil, err
	}

	if err := s.events.Insert(ctx, &event); err != nil {
		if s.metrics != nil {
			s.metrics.EventsRejected.WithLabelValues(string(dErrors.CodeStoreFailure)).Inc()
		}
		return nil, dErrors.Wrap(dErrors.CodeStoreFailure, "persist event", err)
	}

	if s.metrics != nil {
		s.metrics.EventsAccepted.Inc()
	}
	return &event, nil
}
