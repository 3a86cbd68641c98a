package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	httpadapter "github.com/couchcryptid/quake-region-etl/internal/adapter/http"
	"github.com/couchcryptid/quake-region-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStatus struct {
	readyErr error
	report   domain.RunReport
	hasRun   bool
}

func (m *mockStatus) CheckReadiness(_ context.Context) error { return m.readyErr }

func (m *mockStatus) LastReport() (domain.RunReport, bool) { return m.report, m.hasRun }

func newTestServer(status *mockStatus) *httpadapter.Server {
	return httpadapter.NewServer(":0", status, status, slog.Default())
}

func get(srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(&mockStatus{}), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(newTestServer(&mockStatus{}), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(newTestServer(&mockStatus{readyErr: fmt.Errorf("no run yet")}), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no run yet", body["error"])
}

func TestSummaryReturnsLastReport(t *testing.T) {
	status := &mockStatus{
		hasRun: true,
		report: domain.RunReport{
			RunID:         "run-1",
			EventsTotal:   4,
			EventsMatched: 3,
			EventsOutside: 1,
			Counts: []domain.RegionCount{
				{RegionID: "A", Count: 3},
				{RegionID: "B", Count: 0},
			},
		},
	}
	rec := get(newTestServer(status), "/summary")

	assert.Equal(t, http.StatusOK, rec.Code)

	var report domain.RunReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 3, report.EventsMatched)
	require.Len(t, report.Counts, 2)
	assert.Equal(t, 0, report.Counts[1].Count)
}

func TestSummaryReturns404BeforeFirstRun(t *testing.T) {
	rec := get(newTestServer(&mockStatus{}), "/summary")

	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The 404 must come from the handler, not from routing.
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "no completed run yet", body["error"])
}

func TestRoutesRejectWrongMethod(t *testing.T) {
	srv := newTestServer(&mockStatus{})

	for _, path := range []string{"/healthz", "/readyz", "/summary", "/metrics"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, nil)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(&mockStatus{}), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
