// Package metrics exposes Prometheus counters for extraction and reporting.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cfdi"

// Document results.
const (
	ResultRead   = "read"
	ResultFailed = "failed"
)

// Metrics holds the collectors of one process. Each instance has its own
// registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	documents      *prometheus.CounterVec
	batches        prometheus.Counter
	dateErrors     prometheus.Counter
	renderDuration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "CFDI documents processed, by result.",
		}, []string{"result"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Upload batches extracted.",
		}),
		dateErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "date_errors_total",
			Help:      "Records left out of the date tables because their issue date could not be parsed.",
		}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_render_seconds",
			Help:      "Time spent rendering a report, by format.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"format"}),
	}

	reg.MustRegister(
		m.documents,
		m.batches,
		m.dateErrors,
		m.renderDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// DocumentRead counts a successfully extracted document.
func (m *Metrics) DocumentRead(name string) {
	m.documents.WithLabelValues(ResultRead).Inc()
}

// DocumentFailed counts a document skipped because it could not be parsed.
func (m *Metrics) DocumentFailed(name string, err error) {
	m.documents.WithLabelValues(ResultFailed).Inc()
}

func (m *Metrics) BatchExtracted() {
	m.batches.Inc()
}

func (m *Metrics) DateErrors(n int) {
	m.dateErrors.Add(float64(n))
}

// TrackSessions exports count as the live session gauge. It is read on every
// scrape.
func (m *Metrics) TrackSessions(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions",
		Help:      "Live upload sessions.",
	}, func() float64 {
		return float64(count())
	}))
}

// ObserveRender records how long rendering took, measured from start.
func (m *Metrics) ObserveRender(format string, start time.Time) {
	m.renderDuration.WithLabelValues(format).Observe(time.Since(start).Seconds())
}
