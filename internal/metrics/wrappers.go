package metrics

import "github.com/prometheus/client_golang/prometheus"

// Counter wraps prometheus.Counter with a noop implementation when disabled.
type Counter interface {
	Inc()
	Add(float64)
}

// CounterVec wraps prometheus.CounterVec with a noop implementation when disabled.
type CounterVec interface {
	WithLabelValues(labels ...string) Counter
}

// Histogram wraps prometheus.Histogram with a noop implementation when disabled.
type Histogram interface {
	Observe(float64)
}

// HistogramVec wraps prometheus.HistogramVec with a noop implementation when disabled.
type HistogramVec interface {
	WithLabelValues(labels ...string) Histogram
}

// Gauge wraps prometheus.Gauge with a noop implementation when disabled.
type Gauge interface {
	Set(float64)
	Inc()
	Dec()
}

type noopCounter struct{}

func (noopCounter) Inc()        {}
func (noopCounter) Add(float64) {}

type noopCounterVec struct{}

func (noopCounterVec) WithLabelValues(...string) Counter { return noopCounter{} }

type noopHistogram struct{}

func (noopHistogram) Observe(float64) {}

type noopHistogramVec struct{}

func (noopHistogramVec) WithLabelValues(...string) Histogram { return noopHistogram{} }

type noopGauge struct{}

func (noopGauge) Set(float64) {}
func (noopGauge) Inc()        {}
func (noopGauge) Dec()        {}

type counterVecWrapper struct {
	*prometheus.CounterVec
}

func (c *counterVecWrapper) WithLabelValues(labels ...string) Counter {
	return c.CounterVec.WithLabelValues(labels...)
}

type histogramVecWrapper struct {
	*prometheus.HistogramVec
}

func (h *histogramVecWrapper) WithLabelValues(labels ...string) Histogram {
	return h.HistogramVec.WithLabelValues(labels...)
}
