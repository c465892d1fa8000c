package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkerMetrics records payout worker tick and claim outcomes.
type WorkerMetrics struct {
	tickDuration *prometheus.HistogramVec
	success      *prometheus.CounterVec
	failure      *prometheus.CounterVec
	claims       *prometheus.CounterVec
}

// NewWorkerMetrics registers the payout worker metrics on the provided registerer.
func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	if reg == nil {
		return &WorkerMetrics{}
	}
	tickDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payout_tick_duration_seconds",
		Help:    "Duration of payout worker ticks in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_success",
		Help: "Successfully completed payouts.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_failure",
		Help: "Failed payout attempts.",
	}, []string{"job"})
	claims := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_claims",
		Help: "Queue entries claimed for processing.",
	}, []string{"job"})
	reg.MustRegister(tickDuration, success, failure, claims)
	return &WorkerMetrics{
		tickDuration: tickDuration,
		success:      success,
		failure:      failure,
		claims:       claims,
	}
}

// ObserveTick records the duration for the named job's tick.
func (w *WorkerMetrics) ObserveTick(job string, duration time.Duration) {
	if w == nil || w.tickDuration == nil {
		return
	}
	w.tickDuration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (w *WorkerMetrics) IncSuccess(job string) {
	if w == nil || w.success == nil {
		return
	}
	w.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (w *WorkerMetrics) IncFailure(job string) {
	if w == nil || w.failure == nil {
		return
	}
	w.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncClaim increments the claim counter for the named job.
func (w *WorkerMetrics) IncClaim(job string) {
	if w == nil || w.claims == nil {
		return
	}
	w.claims.WithLabelValues(normalizeLabel(job)).Inc()
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
