// Package observability exposes Prometheus metrics for the audio bridge.
// Stream counters are sampled at scrape time from the streams' atomic
// counters; nothing here is ever called from a real-time callback.
package observability

import (
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/audiobridge/internal/errors"
)

// Metrics holds the registry and the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Bridge   *BridgeMetrics
}

// NewMetrics creates a registry with the bridge collector and the standard
// Go runtime collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	bridgeMetrics, err := NewBridgeMetrics(registry)
	if err != nil {
		return nil, errors.New(err).
			Component("observability").
			Category(errors.CategorySystem).
			Context("operation", "register-bridge-metrics").
			Build()
	}

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, errors.New(err).
			Component("observability").
			Category(errors.CategorySystem).
			Context("operation", "register-go-collector").
			Build()
	}

	return &Metrics{
		registry: registry,
		Bridge:   bridgeMetrics,
	}, nil
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// RegisterHandlers registers the metrics endpoint with the provided mux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", m.Handler())
}
