package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics holds the API registry: request traffic, RAG retrieval
// outcomes and batch analysis results.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge

	ragAnswered   *prometheus.CounterVec
	ragGrounded   *prometheus.CounterVec
	ragNoContext  *prometheus.CounterVec
	ragChunks     *prometheus.HistogramVec
	ragLatency    *prometheus.HistogramVec
	analysisItems *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	m := &HTTPServerMetrics{
		registry: prometheus.NewRegistry(),

		requests: counterVec("http", "requests_total", "Total HTTP requests processed.", "service", "method", "path", "status"),
		latency:  histogramVec("http", "request_duration_seconds", "HTTP request duration in seconds.", prometheus.DefBuckets, "service", "method", "path"),
		inFlight: inFlightGauge("http", "in_flight_requests", "Number of in-flight HTTP requests.", service),

		ragAnswered:  counterVec("rag", "requests_total", "Total successful RAG requests.", "service", "endpoint"),
		ragGrounded:  counterVec("rag", "retrieval_hit_total", "RAG requests answered from at least one chunk.", "service", "endpoint"),
		ragNoContext: counterVec("rag", "no_context_total", "RAG requests short-circuited without context.", "service", "endpoint"),
		ragChunks: histogramVec("rag", "retrieved_chunks", "Resolved chunks per successful RAG request.",
			[]float64{0, 1, 2, 3, 5, 8, 13}, "service", "endpoint"),
		ragLatency: histogramVec("rag", "duration_seconds", "RAG execution duration in seconds.",
			[]float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60}, "service", "endpoint"),

		analysisItems: counterVec("analysis", "results_total", "Per-document batch analysis results by status.", "service", "status"),
	}

	m.registry.MustRegister(
		m.requests, m.latency, m.inFlight,
		m.ragAnswered, m.ragGrounded, m.ragNoContext, m.ragChunks, m.ragLatency,
		m.analysisItems,
	)
	return m
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		m.inFlight.Inc()
		defer m.inFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requests.WithLabelValues(service, r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.latency.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath folds process ids out of the label to bound cardinality.
func normalizePath(path string) string {
	rest, ok := strings.CutPrefix(path, "/v1/processes/")
	if !ok || rest == "" {
		return path
	}
	_, tail, found := strings.Cut(rest, "/")
	if !found {
		return "/v1/processes/{process_id}"
	}
	return "/v1/processes/{process_id}/" + tail
}

// RecordRAGObservation counts one answered question. chunkCount is the number
// of chunks the answer was grounded on; zero means the no-context reply.
func (m *HTTPServerMetrics) RecordRAGObservation(service, endpoint string, chunkCount int, duration time.Duration) {
	m.ragAnswered.WithLabelValues(service, endpoint).Inc()
	m.ragChunks.WithLabelValues(service, endpoint).Observe(float64(chunkCount))
	m.ragLatency.WithLabelValues(service, endpoint).Observe(duration.Seconds())

	if chunkCount == 0 {
		m.ragNoContext.WithLabelValues(service, endpoint).Inc()
		return
	}
	m.ragGrounded.WithLabelValues(service, endpoint).Inc()
}

func (m *HTTPServerMetrics) RecordAnalysisResult(service, status string) {
	if status == "" {
		status = "unknown"
	}
	m.analysisItems.WithLabelValues(service, status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
