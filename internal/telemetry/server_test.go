package telemetry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiobridge/internal/bridge"
	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/observability"
)

func newTestServer(t *testing.T) (*Server, *observability.Metrics) {
	t.Helper()
	metrics, err := observability.NewMetrics()
	require.NoError(t, err)
	settings := &conf.Settings{
		Telemetry: conf.TelemetrySettings{Enabled: true, Listen: "127.0.0.1:0"},
	}
	return NewServer(settings, metrics), metrics
}

func openTestStream(t *testing.T) *bridge.Stream {
	t.Helper()
	s, err := bridge.Open(&conf.Settings{
		Audio: conf.AudioSettings{SampleRate: 16000, Channels: 1},
		Pacing: conf.PacingSettings{
			SliceMs:               conf.DefaultSliceMs,
			PrerollMs:             conf.DefaultPrerollMs,
			HeadroomMs:            conf.DefaultHeadroomMs,
			RenderGuardMultiplier: conf.DefaultRenderGuardMultiplier,
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func doRequest(srv *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv, metrics := newTestServer(t)
	metrics.Bridge.Register(openTestStream(t))

	rec := doRequest(srv, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "audiobridge_underflows_total")
	assert.Contains(t, rec.Body.String(), "audiobridge_ring_used_bytes")
}

func TestStreamListAndDetail(t *testing.T) {
	srv, metrics := newTestServer(t)
	s := openTestStream(t)
	metrics.Bridge.Register(s)

	// Render against an empty ring so the detail shows an underflow.
	s.RenderOutput(make([]byte, 320))

	rec := doRequest(srv, http.MethodGet, "/api/v1/streams")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []streamSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, s.ID(), list[0].ID)

	rec = doRequest(srv, http.MethodGet, "/api/v1/streams/"+s.ID())
	require.Equal(t, http.StatusOK, rec.Code)

	var detail streamSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, s.ID(), detail.ID)
	assert.Equal(t, uint64(1), detail.Stats.Underflows)
	assert.Equal(t, "record", detail.Stats.Mode)
}

func TestStreamNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/api/v1/streams/no-such-id")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
