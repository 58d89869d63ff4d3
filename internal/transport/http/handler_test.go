package httpapi_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/ingest"
	"beacon/internal/project"
	"beacon/internal/report"
	"beacon/internal/signing"
	"beacon/internal/telemetry/store/memory"
	httpapi "beacon/internal/transport/http"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	log := slog.New(slog.DiscardHandler)
	events := memory.New()
	projects := project.NewMemoryStore(project.Project{ID: "p1", Secret: "s3cr3t"})

	verifier := signing.New(projects)
	ingestSvc := ingest.NewService(verifier, events, log, nil)
	reports := report.NewService(events, projects)

	handler := httpapi.New(ingestSvc, reports, log)
	srv := httptest.NewServer(httpapi.NewRouter(handler, log, nil))
	t.Cleanup(srv.Close)
	return srv
}

type submission struct {
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

func signedSubmission(category, key, value string) submission {
	ts := time.Now().UnixMilli()
	payload := fmt.Sprintf("p1:dev-1:%d:%s:%s:%s", ts, category, key, value)
	return submission{
		ProjectID:       "p1",
		DeviceID:        "dev-1",
		SessionID:       "sess-1",
		ClientTimestamp: ts,
		Category:        category,
		Key:             key,
		Value:           value,
		Timestamp:       ts,
		Signature:       signing.Sign("s3cr3t", payload),
	}
}

func postEvent(t *testing.T, srv *httptest.Server, sub submission) *http.Response {
	t.Helper()
	body, err := json.Marshal(sub)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/v1/events", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSubmitEvent(t *testing.T) {
	t.Run("valid submission accepted", func(t *testing.T) {
		srv := newTestServer(t)
		resp := postEvent(t, srv, signedSubmission("record", "temp", "23.5"))
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		var out struct {
			ID int64 `json:"id"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, int64(1), out.ID)
	})

	t.Run("auth failures are indistinguishable to the caller", func(t *testing.T) {
		srv := newTestServer(t)

		badSig := signedSubmission("record", "temp", "23.5")
		badSig.Signature = signing.Sign("wrong-secret", "whatever")

		unknownProject := signedSubmission("record", "temp", "23.5")
		unknownProject.ProjectID = "p999"

		stale := signedSubmission("record", "temp", "23.5")
		stale.Timestamp -= 600000

		var bodies []string
		for name, sub := range map[string]submission{
			"bad signature":   badSig,
			"unknown project": unknownProject,
			"stale timestamp": stale,
		} {
			resp := postEvent(t, srv, sub)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, name)
			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body), name)
			bodies = append(bodies, body["error"])
		}
		for _, b := range bodies {
			assert.Equal(t, "authentication_failed", b)
		}
	})

	t.Run("unknown category rejected", func(t *testing.T) {
		srv := newTestServer(t)
		sub := signedSubmission("debug", "temp", "23.5")
		resp := postEvent(t, srv, sub)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		srv := newTestServer(t)
		sub := signedSubmission("record", "temp", "23.5")
		sub.DeviceID = ""
		resp := postEvent(t, srv, sub)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestReportEndpoints(t *testing.T) {
	t.Run("device report reflects accepted events", func(t *testing.T) {
		srv := newTestServer(t)
		postEvent(t, srv, signedSubmission("record", "temp", "20"))
		postEvent(t, srv, signedSubmission("error", "disk", "full"))

		resp, err := http.Get(srv.URL + "/v1/reports/devices/dev-1")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var rep report.DeviceReport
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
		assert.Equal(t, int64(2), rep.TotalCount)
		assert.Equal(t, int64(1), rep.ErrorCount)
	})

	t.Run("degenerate range rejected", func(t *testing.T) {
		srv := newTestServer(t)
		resp, err := http.Get(srv.URL + "/v1/reports/range?start=5000&end=5000")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "invalid_range", body["error"])
	})

	t.Run("non-numeric range rejected", func(t *testing.T) {
		srv := newTestServer(t)
		resp, err := http.Get(srv.URL + "/v1/reports/range?start=abc&end=5000")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("matrix for today includes submitted session", func(t *testing.T) {
		srv := newTestServer(t)
		postEvent(t, srv, signedSubmission("record", "temp", "20"))

		today := time.Now().UTC().Format("2006-01-02")
		resp, err := http.Get(srv.URL + "/v1/matrix/p1/" + today)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var m report.Matrix
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
		assert.Equal(t, []string{"sess-1"}, m.Rows)
		assert.Equal(t, []string{"temp"}, m.Columns)
		assert.Equal(t, "20", m.Cells["sess-1"]["temp"])
	})

	t.Run("matrix range requires both dates", func(t *testing.T) {
		srv := newTestServer(t)
		resp, err := http.Get(srv.URL + "/v1/matrix/p1?start=2024-03-01")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("health endpoint", func(t *testing.T) {
		srv := newTestServer(t)
		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
