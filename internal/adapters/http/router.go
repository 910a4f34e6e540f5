package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/case-intake/internal/config"
	"github.com/kirillkom/case-intake/internal/core/domain"
	"github.com/kirillkom/case-intake/internal/core/ports"
	"github.com/kirillkom/case-intake/internal/observability/metrics"
)

const (
	serviceName        = "api"
	multipartMemory    = 32 << 20
	defaultUploadLimit = 64 << 20
)

// ProcessService combines the process read model with removal.
type ProcessService interface {
	ports.ProcessReader
	ports.ProcessRemover
}

type Router struct {
	uploader  ports.DocumentUploader
	answerer  ports.QuestionAnswerer
	analyzer  ports.BatchAnalyzer
	processes ProcessService
	metrics   *metrics.HTTPServerMetrics

	queryTimeout   time.Duration
	analyzeTimeout time.Duration
	maxUploadBytes int64

	rateLimitRPS        float64
	rateLimitBurst      int
	maxInFlight         int
	backpressureTimeout time.Duration
}

func NewRouter(
	cfg config.Config,
	uploader ports.DocumentUploader,
	answerer ports.QuestionAnswerer,
	analyzer ports.BatchAnalyzer,
	processes ProcessService,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultUploadLimit
	}
	return &Router{
		uploader:  uploader,
		answerer:  answerer,
		analyzer:  analyzer,
		processes: processes,
		metrics:   httpMetrics,

		queryTimeout:   cfg.QueryTimeout,
		analyzeTimeout: cfg.AnalyzeTimeout,
		maxUploadBytes: maxUpload,

		rateLimitRPS:        cfg.APIRateLimitRPS,
		rateLimitBurst:      cfg.APIRateLimitBurst,
		maxInFlight:         cfg.APIBackpressureMaxInFlight,
		backpressureTimeout: cfg.APIBackpressureWaitTimeout,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/processes/{processId}/documents", rt.uploadProcessDocuments)
	mux.HandleFunc("POST /v1/documents", rt.uploadDocuments)
	mux.HandleFunc("POST /v1/events/object-finalized", rt.objectFinalized)
	mux.HandleFunc("POST /v1/rag/query", rt.queryRAG)
	mux.HandleFunc("POST /v1/processes/{processId}/analyze", rt.analyzeProcess)
	mux.HandleFunc("GET /v1/processes/{processId}", rt.getProcess)
	mux.HandleFunc("DELETE /v1/processes/{processId}", rt.deleteProcess)

	var handler http.Handler = mux
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.backpressureTimeout)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type uploadResponse struct {
	ProcessID string             `json:"processId"`
	Documents []*domain.Document `json:"documents"`
}

func (rt *Router) uploadProcessDocuments(w http.ResponseWriter, r *http.Request) {
	rt.upload(w, r, r.PathValue("processId"))
}

func (rt *Router) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart form is required"})
		return
	}
	rt.upload(w, r, r.FormValue("processId"))
}

// upload stores every repeated "file" part under the process. It stops at the
// first failing file; files stored before it stay stored and queued.
func (rt *Router) upload(w http.ResponseWriter, r *http.Request, processID string) {
	if r.MultipartForm == nil {
		r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart form is required"})
			return
		}
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}

	resp := uploadResponse{ProcessID: processID, Documents: make([]*domain.Document, 0, len(files))}
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot read uploaded file " + header.Filename})
			return
		}
		doc, err := rt.uploader.Upload(r.Context(), processID, header.Filename, header.Header.Get("Content-Type"), file)
		_ = file.Close()
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp.Documents = append(resp.Documents, doc)
	}

	writeJSON(w, http.StatusAccepted, resp)
}

func (rt *Router) objectFinalized(w http.ResponseWriter, r *http.Request) {
	var event ports.ObjectFinalized
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := rt.uploader.NotifyObjectFinalized(r.Context(), event); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

type ragQueryRequest struct {
	ProcessID string            `json:"processId"`
	Query     string            `json:"query"`
	History   []domain.ChatTurn `json:"history"`
}

func (rt *Router) queryRAG(w http.ResponseWriter, r *http.Request) {
	var req ragQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.ProcessID) == "" || strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "processId and query are required"})
		return
	}

	ctx, cancel := withTimeout(r.Context(), rt.queryTimeout)
	defer cancel()

	start := time.Now()
	answer, err := rt.answerer.Answer(ctx, req.ProcessID, req.Query, req.History)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordRAGObservation(serviceName, "/v1/rag/query", len(answer.ChunkIDs), time.Since(start))
	}

	writeJSON(w, http.StatusOK, map[string]string{"answer": answer.Text})
}

type analyzeRequest struct {
	Prompt string   `json:"prompt"`
	Files  []string `json:"files"`
}

type analyzeResponse struct {
	ProcessID string                  `json:"processId"`
	Results   []domain.AnalysisResult `json:"results"`
}

func (rt *Router) analyzeProcess(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Files) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "files are required"})
		return
	}

	ctx, cancel := withTimeout(r.Context(), rt.analyzeTimeout)
	defer cancel()

	processID := r.PathValue("processId")
	results := rt.analyzer.AnalyzeBatch(ctx, processID, req.Files, req.Prompt)
	if rt.metrics != nil {
		for _, result := range results {
			rt.metrics.RecordAnalysisResult(serviceName, string(result.Status))
		}
	}

	writeJSON(w, http.StatusOK, analyzeResponse{ProcessID: processID, Results: results})
}

func (rt *Router) getProcess(w http.ResponseWriter, r *http.Request) {
	process, err := rt.processes.GetByID(r.Context(), r.PathValue("processId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, process)
}

func (rt *Router) deleteProcess(w http.ResponseWriter, r *http.Request) {
	if err := rt.processes.RemoveProcess(r.Context(), r.PathValue("processId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
