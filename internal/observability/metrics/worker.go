package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics tracks object-finalized ingestions handled by a worker.
type WorkerMetrics struct {
	registry *prometheus.Registry

	documents *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inFlight  prometheus.Gauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	m := &WorkerMetrics{
		registry: prometheus.NewRegistry(),

		documents: counterVec("worker", "document_ingest_total", "Total ingested documents by status.", "service", "status"),
		duration: histogramVec("worker", "document_ingest_duration_seconds", "Document ingestion duration in seconds by status.",
			[]float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600, 1800}, "service", "status"),
		inFlight: inFlightGauge("worker", "document_ingest_in_flight", "Number of in-flight document ingestions.", service),
	}
	m.registry.MustRegister(m.documents, m.duration, m.inFlight)
	return m
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.inFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(service string, duration time.Duration, err error) {
	m.inFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.documents.WithLabelValues(service, status).Inc()
	m.duration.WithLabelValues(service, status).Observe(duration.Seconds())
}
