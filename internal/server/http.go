package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// BatchResponse is the body of POST /api/v1/invoices/batch.
type BatchResponse struct {
	Total      int                     `json:"total"`
	Successful int                     `json:"successful"`
	Failed     int                     `json:"failed"`
	Results    []entity.PipelineResult `json:"results"`
}

// HTTPHandler serves the REST API.
type HTTPHandler struct {
	svc            *InvoiceService
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewHTTPHandler(svc *InvoiceService, maxUploadMB int, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUploadMB <= 0 {
		maxUploadMB = constants.MaxUploadMBDefault
	}
	return &HTTPHandler{svc: svc, maxUploadBytes: int64(maxUploadMB) << 20, logger: logger}
}

// Router builds the chi router with all routes registered.
func (h *HTTPHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestContext)
	r.Use(middleware.Recoverer)

	r.Get("/", h.handleRoot)
	r.Get("/health", h.handleHealth)
	r.Route("/api/v1/invoices", func(r chi.Router) {
		r.Post("/", h.handleSubmit)
		r.Post("/process", h.handleProcess)
		r.Post("/batch", h.handleBatch)
		r.Get("/{id}/status", h.handleStatus)
	})
	return r
}

// requestContext copies chi's request id into the context and logs each request.
func (h *HTTPHandler) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := common.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		h.logger.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", common.RequestIDFromContext(ctx),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *HTTPHandler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "invoice-pipeline",
		"version": Version,
		"endpoints": []string{
			"GET /health",
			"POST /api/v1/invoices/process",
			"POST /api/v1/invoices/batch",
			"POST /api/v1/invoices",
			"GET /api/v1/invoices/{id}/status",
		},
	})
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := h.svc.Health(r.Context())
	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// handleProcess runs one uploaded invoice synchronously.
// POST /api/v1/invoices/process
func (h *HTTPHandler) handleProcess(w http.ResponseWriter, r *http.Request) {
	path, ok := h.saveSingle(w, r)
	if !ok {
		return
	}
	res := h.svc.Process(r.Context(), path, r.FormValue("vendor_name"))
	status := http.StatusOK
	if res.Failed() {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}

// handleSubmit queues one uploaded invoice.
// POST /api/v1/invoices
func (h *HTTPHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	path, ok := h.saveSingle(w, r)
	if !ok {
		return
	}
	id, err := h.svc.Submit(r.Context(), path, r.FormValue("vendor_name"))
	if err != nil {
		h.logger.Error("http.submit.failed", "path", path, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": constants.JobStatusQueued})
}

// handleBatch runs every uploaded file; files that cannot be stored become error entries.
// POST /api/v1/invoices/batch
func (h *HTTPHandler) handleBatch(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, common.NewAppError(common.CodeInvalidInput, "no files provided", common.ErrInvalidInput))
		return
	}
	vendor := r.FormValue("vendor_name")

	results := make([]entity.PipelineResult, len(files))
	var paths []string
	var slots []int
	for i, fh := range files {
		path, err := h.save(fh)
		if err != nil {
			results[i] = entity.PipelineResult{
				Status:      constants.StatusError,
				InvoicePath: fh.Filename,
				Vendor:      vendor,
				Error:       err.Error(),
				ProcessedAt: time.Now().UTC(),
			}
			continue
		}
		paths = append(paths, path)
		slots = append(slots, i)
	}
	for j, res := range h.svc.ProcessBatch(r.Context(), paths, vendor) {
		results[slots[j]] = res
	}

	resp := BatchResponse{Total: len(results), Results: results}
	for _, res := range results {
		if res.Failed() {
			resp.Failed++
		} else {
			resp.Successful++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/invoices/{id}/status
func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *HTTPHandler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeError(w, common.NewAppError(common.CodeInvalidInput, "invalid multipart form", errors.Join(common.ErrInvalidInput, err)))
		return false
	}
	return true
}

func (h *HTTPHandler) saveSingle(w http.ResponseWriter, r *http.Request) (string, bool) {
	if !h.parseForm(w, r) {
		return "", false
	}
	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeError(w, common.NewAppError(common.CodeInvalidInput, "file is required", common.ErrInvalidInput))
		return "", false
	}
	path, err := h.save(files[0])
	if err != nil {
		writeError(w, err)
		return "", false
	}
	return path, true
}

func (h *HTTPHandler) save(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", common.WrapError(err, "open upload")
	}
	defer f.Close()
	return h.svc.SaveUpload(fh.Filename, f)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps sentinel-wrapped errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrUnsupportedMedia):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrQueueClosed):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
