// Package metrics exposes Prometheus instrumentation for receipt parsing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/radityaharya/workers-receipt-parser/internal/validation"
)

const namespace = "receipt_parser"

// Parse outcomes
const (
	OutcomeOK          = "ok"
	OutcomeRejected    = "rejected"
	OutcomeScanFailed  = "scan_failed"
	OutcomeStoreFailed = "store_failed"
)

// Metrics holds the collectors on a private registry. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	parsed       *prometheus.CounterVec
	issues       *prometheus.CounterVec
	confidence   prometheus.Histogram
	scanDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them, along with the Go runtime
// and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.parsed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "receipts_parsed_total",
		Help:      "Receipts submitted for parsing by outcome",
	}, []string{"outcome"})
	m.issues = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "validation_issues_total",
		Help:      "Validation issues reported by type and severity",
	}, []string{"type", "severity"})
	m.confidence = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "validation_confidence",
		Help:      "Confidence score of validated receipts",
		Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
	})
	m.scanDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scan_duration_seconds",
		Help:      "Time spent waiting for the vision model",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"scanner"})

	m.registry.MustRegister(
		m.parsed, m.issues, m.confidence, m.scanDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveParse counts one parse attempt
func (m *Metrics) ObserveParse(outcome string) {
	if m == nil {
		return
	}
	m.parsed.WithLabelValues(outcome).Inc()
}

// ObserveScan records how long a scanner took
func (m *Metrics) ObserveScan(scanner string, d time.Duration) {
	if m == nil {
		return
	}
	m.scanDuration.WithLabelValues(scanner).Observe(d.Seconds())
}

// ObserveValidation records the issues and confidence of one validation result
func (m *Metrics) ObserveValidation(result validation.Result) {
	if m == nil {
		return
	}
	for _, issue := range result.Issues {
		m.issues.WithLabelValues(string(issue.Type), issue.Severity.String()).Inc()
	}
	m.confidence.Observe(result.ConfidenceScore)
}
