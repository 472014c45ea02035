// Package metrics exposes Prometheus metrics for endpoint compilation and
// call dispatch. When disabled every metric is a noop and nothing is
// registered, so callers never need to check.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rpcexpose"

// Outcomes recorded in the requests_total outcome label.
const (
	OutcomeSuccess      = "success"
	OutcomeNotFound     = "not_found"
	OutcomeUnauthorized = "unauthorized"
	OutcomeBadRequest   = "bad_request"
	OutcomeFault        = "fault"
	OutcomeAborted      = "aborted"
)

// Metrics holds every collector used by rpcexpose.
type Metrics struct {
	enabled  bool
	registry *prometheus.Registry

	RequestsTotal          CounterVec
	RequestDurationSeconds HistogramVec
	AuthorizationDenials   CounterVec
	EndpointsCompiled      Counter
	Endpoints              Gauge
}

// New creates the metric set. With enabled false all collectors are noops.
func New(enabled bool) *Metrics {
	m := &Metrics{enabled: enabled, registry: prometheus.NewRegistry()}
	if !enabled {
		m.RequestsTotal = noopCounterVec{}
		m.RequestDurationSeconds = noopHistogramVec{}
		m.AuthorizationDenials = noopCounterVec{}
		m.EndpointsCompiled = noopCounter{}
		m.Endpoints = noopGauge{}
		return m
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Total number of dispatched calls by outcome",
	}, []string{"verb", "route", "outcome"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "Duration of dispatched calls in seconds",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
	}, []string{"verb", "route"})

	denials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authorization_denials_total",
		Help:      "Total number of calls denied by an authorization check",
	}, []string{"route"})

	compiled := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "endpoints_compiled_total",
		Help:      "Total number of endpoint descriptors compiled",
	})

	endpoints := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "endpoints",
		Help:      "Number of routes currently in the endpoint table",
	})

	m.registry.MustRegister(
		requests, duration, denials, compiled, endpoints,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.RequestsTotal = &counterVecWrapper{requests}
	m.RequestDurationSeconds = &histogramVecWrapper{duration}
	m.AuthorizationDenials = &counterVecWrapper{denials}
	m.EndpointsCompiled = compiled
	m.Endpoints = endpoints
	return m
}

// Enabled reports whether metrics are collected.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Registry returns the Prometheus registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
