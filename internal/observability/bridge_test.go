package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiobridge/internal/bridge"
	"github.com/tphakala/audiobridge/internal/conf"
)

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

// gather returns metric families keyed by name.
func gather(t *testing.T, registry *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}
	return byName
}

func findByLabel(mf *dto.MetricFamily, key, value string) []*dto.Metric {
	var out []*dto.Metric
	for _, m := range mf.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == key && l.GetValue() == value {
				out = append(out, m)
			}
		}
	}
	return out
}

func TestCollectorExposesStreamCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	bm, err := NewBridgeMetrics(registry)
	require.NoError(t, err)

	s := openTestStream(t)
	bm.Register(s)

	// Provoke an underflow and some buffered audio.
	dst := make([]byte, 160)
	s.RenderOutput(dst)
	s.WritePlayback(make([]byte, 640))

	byName := gather(t, registry)

	uf := byName["audiobridge_underflows_total"]
	require.NotNil(t, uf)
	metrics := findByLabel(uf, "stream_id", s.ID())
	require.Len(t, metrics, 1)
	assert.InDelta(t, 1.0, metrics[0].GetCounter().GetValue(), 0.001)

	used := byName["audiobridge_ring_used_bytes"]
	require.NotNil(t, used)
	playback := findByLabel(used, "ring", "playback")
	require.Len(t, playback, 1)
	assert.InDelta(t, 640.0, playback[0].GetGauge().GetValue(), 0.001)

	pull := byName["audiobridge_device_pull_bytes"]
	require.NotNil(t, pull)
	last := findByLabel(pull, "kind", "last")
	require.Len(t, last, 1)
	assert.InDelta(t, 160.0, last[0].GetGauge().GetValue(), 0.001)
}

func TestUnregisterRemovesStreamFromScrape(t *testing.T) {
	registry := prometheus.NewRegistry()
	bm, err := NewBridgeMetrics(registry)
	require.NoError(t, err)

	s := openTestStream(t)
	bm.Register(s)
	require.NotNil(t, bm.Stream(s.ID()))

	bm.Unregister(s.ID())
	assert.Nil(t, bm.Stream(s.ID()))

	byName := gather(t, registry)
	if mf, ok := byName["audiobridge_underflows_total"]; ok {
		assert.Empty(t, findByLabel(mf, "stream_id", s.ID()))
	}
}

func TestNewMetricsRegistersBridgeCollector(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)
	require.NotNil(t, m.Bridge)
	require.NotNil(t, m.Registry())

	s := openTestStream(t)
	m.Bridge.Register(s)
	assert.Len(t, m.Bridge.Streams(), 1)

	_, err = m.Registry().Gather()
	assert.NoError(t, err)
}
