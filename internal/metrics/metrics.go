// Package metrics exposes Prometheus metrics for rotations, probes and the
// kill switch on a private registry.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/tornet/internal/brand"
	"grimm.is/tornet/internal/logging"
)

// Registry holds all tornet metrics.
type Registry struct {
	reg    *prometheus.Registry
	routes map[string]http.Handler

	RotationsTotal    *prometheus.CounterVec
	LastRotation      prometheus.Gauge
	ProbeDuration     *prometheus.HistogramVec
	KillSwitchEnabled prometheus.Gauge
	BuildInfo         *prometheus.GaugeVec
}

// New creates a registry with the Go runtime and process collectors.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	r := &Registry{reg: reg}

	r.RotationsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "tornet_rotations_total",
		Help: "Rotation cycles completed, by probe outcome",
	}, []string{"result"})

	r.LastRotation = f.NewGauge(prometheus.GaugeOpts{
		Name: "tornet_last_rotation_timestamp_seconds",
		Help: "Unix time of the last completed rotation cycle",
	})

	r.ProbeDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tornet_probe_duration_seconds",
		Help:    "Network probe latency",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 6, 8, 10},
	}, []string{"kind", "result"})

	r.KillSwitchEnabled = f.NewGauge(prometheus.GaugeOpts{
		Name: "tornet_killswitch_enabled",
		Help: "1 when the kill switch was last observed enabled",
	})

	r.BuildInfo = f.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tornet_build_info",
		Help: "Build version",
	}, []string{"version", "commit"})
	r.BuildInfo.WithLabelValues(brand.Version, brand.GitCommit).Set(1)

	// Pre-create label sets so both outcomes appear from the first scrape.
	r.RotationsTotal.WithLabelValues("ok")
	r.RotationsTotal.WithLabelValues("failed")

	return r
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

// RecordRotation counts one rotation cycle.
func (r *Registry) RecordRotation(ok bool, at time.Time) {
	r.RotationsTotal.WithLabelValues(result(ok)).Inc()
	r.LastRotation.Set(float64(at.Unix()))
}

// ObserveProbe records probe latency.
func (r *Registry) ObserveProbe(kind string, ok bool, d time.Duration) {
	r.ProbeDuration.WithLabelValues(kind, result(ok)).Observe(d.Seconds())
}

// SetKillSwitch records the observed kill switch state.
func (r *Registry) SetKillSwitch(enabled bool) {
	if enabled {
		r.KillSwitchEnabled.Set(1)
	} else {
		r.KillSwitchEnabled.Set(0)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Handle adds a route served next to /metrics. Call before Serve.
func (r *Registry) Handle(pattern string, h http.Handler) {
	if r.routes == nil {
		r.routes = make(map[string]http.Handler)
	}
	r.routes[pattern] = h
}

// Serve exposes /metrics and any added routes on addr until ctx is done.
func (r *Registry) Serve(ctx context.Context, addr string, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.WithComponent("metrics")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	for pattern, h := range r.routes {
		mux.Handle(pattern, h)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
