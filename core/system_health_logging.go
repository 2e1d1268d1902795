// Core - Health & Metrics Reporting
// ---------------------------------
//
// HealthReporter periodically samples the overlay store into the
// process's Metrics (see logging.go; the facade updates its own call
// counters there as it runs) and serves them over HTTP.
// Grounded in the original HealthLogger: a JSON-formatted logrus logger
// plus a dedicated Prometheus registry, a periodic collector goroutine
// gated on a context, and a managed http.Server for /metrics — the
// shape is unchanged, only what gets measured differs (object-store
// occupancy and facade call counts instead of block height/peer count).
package core

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthReporter wires a Metrics instance to the components it samples
// and to an optional periodic collector.
type HealthReporter struct {
	metrics *Metrics
	overlay *LocalOverlayStore
	log     *loggerT
}

// NewHealthReporter builds a reporter sampling overlay into metrics.
func NewHealthReporter(metrics *Metrics, overlay *LocalOverlayStore) *HealthReporter {
	return &HealthReporter{metrics: metrics, overlay: overlay, log: facadeLog}
}

// RecordMetrics takes one sample of the overlay's current occupancy.
// Facade request counters and invariant-abort counts are updated inline
// by their respective call sites rather than sampled here, since those
// are naturally event-driven counters, not point-in-time gauges.
func (h *HealthReporter) RecordMetrics() {
	h.overlay.mu.RLock()
	count := len(h.overlay.latest)
	h.overlay.mu.RUnlock()
	h.metrics.OverlayObjectCount.Set(float64(count))
	h.log.Debug("metrics recorded")
}

// RunMetricsCollector samples metrics on interval until ctx is canceled.
func (h *HealthReporter) RunMetricsCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.RecordMetrics()
		case <-ctx.Done():
			return
		}
	}
}

// StartMetricsServer exposes the reporter's Prometheus registry at
// /metrics on addr. It returns the underlying http.Server so callers can
// manage its shutdown.
func (h *HealthReporter) StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.WithError(err).Error("metrics server exited")
		}
	}()
	return srv
}

// ShutdownMetricsServer gracefully stops the metrics HTTP server.
func (h *HealthReporter) ShutdownMetricsServer(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
