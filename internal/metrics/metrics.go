// Package metrics exposes Prometheus collectors for the scan engine. A nil
// *Registry is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector the engine reports.
type Registry struct {
	reg *prometheus.Registry

	ProviderCalls   *prometheus.CounterVec
	ProviderLatency *prometheus.HistogramVec
	BreakerState    *prometheus.GaugeVec
	CacheLookups    *prometheus.CounterVec
	UnitOutcomes    *prometheus.CounterVec
	StoreWrites     *prometheus.CounterVec
	ScanDuration    *prometheus.HistogramVec
	ActiveUnits     prometheus.Gauge
}

// New creates a Registry with its own prometheus registry, so tests and
// multiple instances never collide on the default one.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		ProviderCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionscan_provider_calls_total",
				Help: "Upstream quote provider calls by provider, operation and outcome",
			},
			[]string{"provider", "op", "outcome"},
		),
		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optionscan_provider_latency_seconds",
				Help:    "Upstream quote provider call latency",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"provider", "op"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "optionscan_breaker_state",
				Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
			},
			[]string{"provider"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionscan_cache_lookups_total",
				Help: "Quote cache lookups by tier and result",
			},
			[]string{"tier", "result"},
		),
		UnitOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionscan_unit_outcomes_total",
				Help: "Scan units by terminal state and failure category",
			},
			[]string{"state", "category"},
		),
		StoreWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionscan_store_writes_total",
				Help: "Persistent store upserts by outcome",
			},
			[]string{"outcome"},
		),
		ScanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optionscan_scan_duration_seconds",
				Help:    "Duration of whole scan runs by trigger",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"trigger"},
		),
		ActiveUnits: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "optionscan_active_units",
				Help: "Scan units currently holding a worker slot",
			},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.ProviderCalls,
		r.ProviderLatency,
		r.BreakerState,
		r.CacheLookups,
		r.UnitOutcomes,
		r.StoreWrites,
		r.ScanDuration,
		r.ActiveUnits,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveProviderCall records one upstream call.
func (r *Registry) ObserveProviderCall(provider, op, outcome string, latency time.Duration) {
	if r == nil {
		return
	}
	r.ProviderCalls.WithLabelValues(provider, op, outcome).Inc()
	r.ProviderLatency.WithLabelValues(provider, op).Observe(latency.Seconds())
}

// SetBreakerState records the breaker state of a provider.
func (r *Registry) SetBreakerState(provider string, state int) {
	if r == nil {
		return
	}
	r.BreakerState.WithLabelValues(provider).Set(float64(state))
}

// CacheLookup records a hit or miss on a cache tier.
func (r *Registry) CacheLookup(tier string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.CacheLookups.WithLabelValues(tier, result).Inc()
}

// UnitOutcome records the terminal state of a scan unit.
func (r *Registry) UnitOutcome(state, category string) {
	if r == nil {
		return
	}
	r.UnitOutcomes.WithLabelValues(state, category).Inc()
}

// StoreWrite records a persistent upsert outcome.
func (r *Registry) StoreWrite(outcome string) {
	if r == nil {
		return
	}
	r.StoreWrites.WithLabelValues(outcome).Inc()
}

// ScanFinished records the duration of a scan run.
func (r *Registry) ScanFinished(trigger string, d time.Duration) {
	if r == nil {
		return
	}
	r.ScanDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

// UnitStarted and UnitDone track worker slot occupancy.
func (r *Registry) UnitStarted() {
	if r == nil {
		return
	}
	r.ActiveUnits.Inc()
}

func (r *Registry) UnitDone() {
	if r == nil {
		return
	}
	r.ActiveUnits.Dec()
}
