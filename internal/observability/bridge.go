package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/audiobridge/internal/bridge"
)

// BridgeMetrics is a custom collector that samples registered streams at
// scrape time. Reading the streams' atomic counters from the scraper's
// goroutine keeps the real-time paths entirely free of metrics code.
type BridgeMetrics struct {
	mu      sync.RWMutex
	streams map[string]*bridge.Stream

	underflowsDesc      *prometheus.Desc
	droppedBytesDesc    *prometheus.Desc
	stagingGrowsDesc    *prometheus.Desc
	ringUsedDesc        *prometheus.Desc
	stagingCapacityDesc *prometheus.Desc
	devicePullDesc      *prometheus.Desc
	prerollsDesc        *prometheus.Desc
	prerolledDesc       *prometheus.Desc
}

// NewBridgeMetrics creates and registers the bridge collector.
func NewBridgeMetrics(registry *prometheus.Registry) (*BridgeMetrics, error) {
	m := &BridgeMetrics{
		streams: make(map[string]*bridge.Stream),
		underflowsDesc: prometheus.NewDesc(
			"audiobridge_underflows_total",
			"Device pulls that found less playback data than requested",
			[]string{"stream_id"}, nil),
		droppedBytesDesc: prometheus.NewDesc(
			"audiobridge_dropped_bytes_total",
			"Bytes evicted unread by the drop-oldest overflow policy",
			[]string{"stream_id", "ring"}, nil),
		stagingGrowsDesc: prometheus.NewDesc(
			"audiobridge_staging_grows_total",
			"Staging ring capacity growths",
			[]string{"stream_id"}, nil),
		ringUsedDesc: prometheus.NewDesc(
			"audiobridge_ring_used_bytes",
			"Current unread bytes per ring",
			[]string{"stream_id", "ring"}, nil),
		stagingCapacityDesc: prometheus.NewDesc(
			"audiobridge_staging_capacity_bytes",
			"Current staging ring capacity",
			[]string{"stream_id"}, nil),
		devicePullDesc: prometheus.NewDesc(
			"audiobridge_device_pull_bytes",
			"Observed device pull sizes",
			[]string{"stream_id", "kind"}, nil),
		prerollsDesc: prometheus.NewDesc(
			"audiobridge_prerolls_completed_total",
			"Preroll to steady-state transitions of the pacing engine",
			[]string{"stream_id"}, nil),
		prerolledDesc: prometheus.NewDesc(
			"audiobridge_prerolled",
			"Whether the current segment has completed preroll (1) or not (0)",
			[]string{"stream_id"}, nil),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Register adds a stream to the scrape set. Typically called right after
// bridge.Open.
func (m *BridgeMetrics) Register(s *bridge.Stream) {
	m.mu.Lock()
	m.streams[s.ID()] = s
	m.mu.Unlock()
}

// Unregister removes a stream from the scrape set. Call before closing the
// stream.
func (m *BridgeMetrics) Unregister(id string) {
	m.mu.Lock()
	delete(m.streams, id)
	m.mu.Unlock()
}

// Describe implements prometheus.Collector.
func (m *BridgeMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.underflowsDesc
	ch <- m.droppedBytesDesc
	ch <- m.stagingGrowsDesc
	ch <- m.ringUsedDesc
	ch <- m.stagingCapacityDesc
	ch <- m.devicePullDesc
	ch <- m.prerollsDesc
	ch <- m.prerolledDesc
}

// Collect implements prometheus.Collector.
func (m *BridgeMetrics) Collect(ch chan<- prometheus.Metric) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for id, s := range m.streams {
		stats := s.Stats()
		levels := s.Levels()

		ch <- prometheus.MustNewConstMetric(m.underflowsDesc,
			prometheus.CounterValue, float64(stats.Underflows), id)
		ch <- prometheus.MustNewConstMetric(m.droppedBytesDesc,
			prometheus.CounterValue, float64(stats.CaptureDropped), id, "capture")
		ch <- prometheus.MustNewConstMetric(m.droppedBytesDesc,
			prometheus.CounterValue, float64(stats.PlaybackDropped), id, "playback")
		ch <- prometheus.MustNewConstMetric(m.stagingGrowsDesc,
			prometheus.CounterValue, float64(stats.StagingGrows), id)
		ch <- prometheus.MustNewConstMetric(m.ringUsedDesc,
			prometheus.GaugeValue, float64(levels.Capture), id, "capture")
		ch <- prometheus.MustNewConstMetric(m.ringUsedDesc,
			prometheus.GaugeValue, float64(levels.Playback), id, "playback")
		ch <- prometheus.MustNewConstMetric(m.ringUsedDesc,
			prometheus.GaugeValue, float64(levels.Staging), id, "staging")
		ch <- prometheus.MustNewConstMetric(m.stagingCapacityDesc,
			prometheus.GaugeValue, float64(levels.StagingCapacity), id)
		ch <- prometheus.MustNewConstMetric(m.devicePullDesc,
			prometheus.GaugeValue, float64(stats.LastPullBytes), id, "last")
		ch <- prometheus.MustNewConstMetric(m.devicePullDesc,
			prometheus.GaugeValue, float64(stats.MaxPullBytes), id, "max")
		ch <- prometheus.MustNewConstMetric(m.prerollsDesc,
			prometheus.CounterValue, float64(stats.PrerollsCompleted), id)
		prerolled := 0.0
		if stats.Prerolled {
			prerolled = 1.0
		}
		ch <- prometheus.MustNewConstMetric(m.prerolledDesc,
			prometheus.GaugeValue, prerolled, id)
	}
}

// Streams returns the registered streams, for the debug endpoint.
func (m *BridgeMetrics) Streams() []*bridge.Stream {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*bridge.Stream, 0, len(m.streams))
	for _, s := range m.streams {
		out = append(out, s)
	}
	return out
}

// Stream returns one registered stream by id, or nil.
func (m *BridgeMetrics) Stream(id string) *bridge.Stream {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.streams[id]
}
