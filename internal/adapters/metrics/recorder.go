// Package metrics records worker pool and build measurements with Prometheus.
package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/zerr"
)

const namespace = "reactor"

// Recorder implements ports.Metrics on a private Prometheus registry.
type Recorder struct {
	registry        *prom.Registry
	acquisitions    *prom.CounterVec
	discards        *prom.CounterVec
	poolSize        *prom.GaugeVec
	moduleResults   *prom.CounterVec
	buildResults    *prom.CounterVec
	buildDuration   prom.Histogram
	lastBuildResult prom.Gauge
}

var _ ports.Metrics = (*Recorder)(nil)

// NewRecorder constructs and registers the metrics. A nil registry gets a fresh one.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{
		registry: reg,
		acquisitions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "worker_acquisitions_total",
			Help:      "Worker acquisitions by outcome",
		}, []string{"outcome"}),
		discards: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "worker_discards_total",
			Help:      "Workers dropped from the pool by reason",
		}, []string{"reason"}),
		poolSize: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_idle_workers",
			Help:      "Idle workers cached per owner",
		}, []string{"owner"}),
		moduleResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "module_results_total",
			Help:      "Module results",
		}, []string{"result"}),
		buildResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_results_total",
			Help:      "Aggregate build results",
		}, []string{"result"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.ExponentialBuckets(1, 2, 12),
		}),
		lastBuildResult: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_build_result",
			Help:      "Ordinal of the last aggregate result (1 SUCCESS .. 5 ABORTED)",
		}),
	}
	reg.MustRegister(
		r.acquisitions, r.discards, r.poolSize,
		r.moduleResults, r.buildResults, r.buildDuration, r.lastBuildResult,
	)
	return r
}

// Registry returns the registry the metrics live in.
func (r *Recorder) Registry() *prom.Registry {
	return r.registry
}

// WorkerAcquired counts an acquisition by outcome.
func (r *Recorder) WorkerAcquired(outcome string) {
	r.acquisitions.WithLabelValues(outcome).Inc()
}

// WorkerDiscarded counts a worker dropped from the pool.
func (r *Recorder) WorkerDiscarded(reason string) {
	r.discards.WithLabelValues(reason).Inc()
}

// PoolSize reports the idle workers of owner.
func (r *Recorder) PoolSize(owner string, size int) {
	r.poolSize.WithLabelValues(owner).Set(float64(size))
}

// ModuleFinished counts a module result.
func (r *Recorder) ModuleFinished(result domain.Result) {
	r.moduleResults.WithLabelValues(label(result)).Inc()
}

// BuildFinished records an aggregate result and its duration.
func (r *Recorder) BuildFinished(result domain.Result, duration time.Duration) {
	r.buildResults.WithLabelValues(label(result)).Inc()
	r.buildDuration.Observe(duration.Seconds())
	r.lastBuildResult.Set(float64(result))
}

// WriteTextfile writes every metric to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prom.WriteToTextfile(path, r.registry); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write metrics"), "path", path)
	}
	return nil
}

func label(result domain.Result) string {
	if !result.IsSet() {
		return "NONE"
	}
	return result.String()
}
