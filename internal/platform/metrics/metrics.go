package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Document outcomes.
const (
	OutcomeExtracted = "extracted"
	OutcomeCached    = "cached"
	OutcomeFatal     = "fatal"
	OutcomeInvalid   = "invalid"
)

// Metrics holds the Prometheus collectors of the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Documents         *prometheus.CounterVec
	CriteriaExtracted prometheus.Counter
	CriteriaPruned    prometheus.Counter
	Diagnostics       prometheus.Counter
	ExtractionSeconds prometheus.Histogram
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg, reg)
}

func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Documents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hqmf_documents_total",
			Help: "HQMF documents processed, by outcome",
		}, []string{"outcome"}),

		CriteriaExtracted: factory.NewCounter(prometheus.CounterOpts{
			Name: "hqmf_criteria_extracted_total",
			Help: "Data criteria in extraction results after pruning",
		}),

		CriteriaPruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "hqmf_criteria_pruned_total",
			Help: "Data criteria removed as redundant",
		}),

		Diagnostics: factory.NewCounter(prometheus.CounterOpts{
			Name: "hqmf_diagnostics_total",
			Help: "Non-fatal diagnostics raised during extraction",
		}),

		ExtractionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hqmf_extraction_seconds",
			Help:    "Duration of parsing and extracting one document",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "path", "status"}),

		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		gatherer: gatherer,
	}
}

// ObserveDocument records one processed document. Counts are ignored unless
// the outcome is OutcomeExtracted.
func (m *Metrics) ObserveDocument(outcome string, criteria, pruned, diagnostics int, d time.Duration) {
	if m == nil {
		return
	}
	m.Documents.WithLabelValues(outcome).Inc()
	if outcome != OutcomeExtracted {
		return
	}
	m.CriteriaExtracted.Add(float64(criteria))
	m.CriteriaPruned.Add(float64(pruned))
	m.Diagnostics.Add(float64(diagnostics))
	m.ExtractionSeconds.Observe(d.Seconds())
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, path, status).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
