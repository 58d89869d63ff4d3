// Package httpapi is the thin HTTP layer. Handlers delegate to domain
// services and keep transport concerns (decoding, status mapping) out of the
// core.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"beacon/internal/platform/middleware"
	"beacon/internal/report"
	"beacon/internal/telemetry"
	dErrors "beacon/pkg/domain-errors"
)

// maxKeyLength bounds the observation key; devices sending longer keys are
// misbehaving and get a 400 before any crypto work.
const maxKeyLength = 128

// Ingestor is the write-path surface the handler consumes.
type Ingestor interface {
	Submit(ctx context.Context, event telemetry.Event, timestamp int64, signature string) (*telemetry.Event, error)
}

// Handler handles ingestion and report endpoints.
type Handler struct {
	logger  *slog.Logger
	ingest  Ingestor
	reports report.Reports
}

// New creates the HTTP handler.
func New(ingest Ingestor, reports report.Reports, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, ingest: ingest, reports: reports}
}

// Register mounts all routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/events", h.handleSubmitEvent)
	r.Get("/v1/reports/devices/{deviceID}", h.handleDeviceReport)
	r.Get("/v1/reports/range", h.handleRangeReport)
	r.Get("/v1/reports/errors", h.handleErrorReport)
	r.Get("/v1/matrix/{projectID}/{date}", h.handleMatrix)
	r.Get("/v1/matrix/{projectID}", h.handleMatrixRange)
}

type submitEventRequest struct {
	ProjectID       string `json:"projectId"`
	DeviceID        string `json:"deviceId"`
	SessionID       string `json:"sessionId"`
	ClientTimestamp int64  `json:"clientTimestamp"`
	Category        string `json:"category"`
	Key             string `json:"key"`
	Value           string `json:"value"`
	Timestamp       int64  `json:"timestamp"`
	Signature       string `json:"signature"`
}

type submitEventResponse struct {
	ID         int64     `json:"id"`
	ReceivedAt time.Time `json:"receivedAt"`
}

func (h *Handler) handleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req submitEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}
	category, err := telemetry.ParseCategory(req.Category)
	if err != nil {
		writeError(w, err)
		return
	}

	event := telemetry.Event{
		ProjectID:       req.ProjectID,
		DeviceID:        req.DeviceID,
		SessionID:       req.SessionID,
		ClientTimestamp: req.ClientTimestamp,
		Category:        category,
		Key:             req.Key,
		Value:           req.Value,
	}

	stored, err := h.ingest.Submit(ctx, event, req.Timestamp, req.Signature)
	if err != nil {
		if dErrors.IsAuthFailure(err) {
			// Do not reveal which of the three checks failed; the split
			// stays in logs and metrics.
			h.logger.Warn("authentication failed",
				"request_id", middleware.GetRequestID(ctx),
				"reason", string(dErrors.CodeOf(err)),
			)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication_failed"})
			return
		}
		h.logger.Error("submission failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, submitEventResponse{
		ID:         stored.ID,
		ReceivedAt: stored.ServerReceivedAt,
	})
}

func (req submitEventRequest) validate() error {
	switch {
	case req.ProjectID == "":
		return dErrors.New(dErrors.CodeBadRequest, "projectId is required")
	case req.DeviceID == "":
		return dErrors.New(dErrors.CodeBadRequest, "deviceId is required")
	case req.SessionID == "":
		return dErrors.New(dErrors.CodeBadRequest, "sessionId is required")
	case req.Key == "":
		return dErrors.New(dErrors.CodeBadRequest, "key is required")
	case len(req.Key) > maxKeyLength:
		return dErrors.New(dErrors.CodeBadRequest, "key exceeds maximum length")
	case req.Timestamp <= 0:
		return dErrors.New(dErrors.CodeBadRequest, "timestamp is required")
	case req.Signature == "":
		return dErrors.New(dErrors.CodeBadRequest, "signature is required")
	}
	return nil
}

func (h *Handler) handleDeviceReport(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	rep, err := h.reports.ByDevice(r.Context(), deviceID)
	if err != nil {
		h.logReportError(r, "device report failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) handleRangeReport(w http.ResponseWriter, r *http.Request) {
	start, err := queryMillis(r, "start")
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := queryMillis(r, "end")
	if err != nil {
		writeError(w, err)
		return
	}

	rep, err := h.reports.ByTimeRange(r.Context(), start, end)
	if err != nil {
		h.logReportError(r, "range report failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) handleErrorReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.Errors(r.Context())
	if err != nil {
		h.logReportError(r, "error report failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) handleMatrix(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	date := chi.URLParam(r, "date")

	m, err := h.reports.OrganizationMatrix(r.Context(), projectID, date)
	if err != nil {
		h.logReportError(r, "matrix build failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleMatrixRange(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if start == "" || end == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "start and end dates are required"))
		return
	}

	m, err := h.reports.OrganizationMatrixRange(r.Context(), projectID, start, end)
	if err != nil {
		h.logReportError(r, "matrix range build failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) logReportError(r *http.Request, msg string, err error) {
	// Client mistakes are request-level noise, not service errors.
	if code := dErrors.ToHTTPStatus(dErrors.CodeOf(err)); code < http.StatusInternalServerError {
		return
	}
	h.logger.Error(msg,
		"request_id", middleware.GetRequestID(r.Context()),
		"error", err.Error(),
	)
}

func queryMillis(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, dErrors.New(dErrors.CodeBadRequest, name+" is required")
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeBadRequest, name+" must be epoch milliseconds")
	}
	return time.UnixMilli(ms).UTC(), nil
}

// writeError centralizes domain error translation to HTTP responses so every
// handler emits the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	writeJSON(w, dErrors.ToHTTPStatus(code), map[string]string{"error": string(code)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
