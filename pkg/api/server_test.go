package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irctrakz/streammon/pkg/core"
	"github.com/irctrakz/streammon/pkg/events"
	"github.com/irctrakz/streammon/pkg/exporter"
	"github.com/irctrakz/streammon/pkg/logging"
	"github.com/irctrakz/streammon/pkg/monitoring"
)

func TestMain(m *testing.M) {
	logging.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func newTestServer(t *testing.T) (*Server, *events.Dispatcher) {
	t.Helper()
	host := monitoring.NewHostMetrics("h-1", "edge", monitoring.DefaultConfig())
	d := events.NewDispatcher(host)
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(exporter.NewCollector("streammon", host, d, false)))
	return NewServer(core.APIConfig{ListenAddr: "127.0.0.1:0"}, d, reg), d
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestEventIngestAndSnapshots(t *testing.T) {
	s, d := newTestServer(t)

	posts := []string{
		`{"type":"app_created","app":1,"app_name":"live"}`,
		`{"type":"stream_created","app":1,"stream":{"id":2,"name":"b"}}`,
		`{"type":"stream_created","app":1,"stream":{"id":1,"name":"a"}}`,
		`{"type":"session_connected","app":1,"stream":{"id":1},"publisher":"hls"}`,
		`{"type":"stream_reserved","app":1,"provider":"srt","uri":"srt://h:9000/x","name":"x"}`,
	}
	for _, p := range posts {
		rec := do(t, s, http.MethodPost, "/api/v1/events", p)
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	}
	assert.Equal(t, int64(1), d.Host().GetConnections(core.PublisherHls))

	rec := do(t, s, http.MethodGet, "/api/v1/host?children=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var host monitoring.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &host))
	assert.Equal(t, "h-1", host.ID)
	require.Len(t, host.Children, 1)
	assert.Len(t, host.Children[0].Children, 2)

	rec = do(t, s, http.MethodGet, "/api/v1/apps/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var app monitoring.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &app))
	assert.Equal(t, "live", app.Name)
	assert.Empty(t, app.Children)

	rec = do(t, s, http.MethodGet, "/api/v1/apps/1/streams", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var streams []monitoring.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &streams))
	require.Len(t, streams, 2)
	assert.Equal(t, "1", streams[0].ID)
	assert.Equal(t, int64(1), streams[0].Counters.TotalConnections)

	rec = do(t, s, http.MethodGet, "/api/v1/apps/1/streams/2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/apps/1/reserved", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var reserved []monitoring.ReservationInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reserved))
	require.Len(t, reserved, 1)
	assert.Equal(t, uint32(9000), reserved[0].Port)
	assert.Equal(t, "srt", reserved[0].Provider)
}

func TestEventErrors(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/events", `{"type":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/events", `{"type":"stream_deleted","app":3,"stream":{"id":1}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/events", `{"type":"app_created","app":3}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = do(t, s, http.MethodPost, "/api/v1/events", `{"type":"stream_created","app":3,"stream":{"id":1,"origin_id":1}}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNotFoundLookups(t *testing.T) {
	s, _ := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/apps/5", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/apps/5/streams", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/apps/x", "").Code)

	require.Equal(t, http.StatusAccepted, do(t, s, http.MethodPost, "/api/v1/events", `{"type":"app_created","app":5}`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/apps/5/streams/9", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	require.Equal(t, http.StatusAccepted, do(t, s, http.MethodPost, "/api/v1/events", `{"type":"app_created","app":1,"app_name":"live"}`).Code)
	require.Equal(t, http.StatusAccepted, do(t, s, http.MethodPost, "/api/v1/events", `{"type":"bytes_in","app":1,"bytes":512}`).Code)

	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Regexp(t, `streammon_bytes_in_total\{app="live",app_id="1",level="application"[^}]*\} 512`, body)
	assert.Contains(t, body, `streammon_events_total{result="applied"} 2`)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t)
	s.cfg.MaxConnections = 4

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
