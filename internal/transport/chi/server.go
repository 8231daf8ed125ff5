package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/domain"
	logpkg "github.com/kailas-cloud/pdfrag/internal/logger"
	healthuc "github.com/kailas-cloud/pdfrag/internal/usecase/health"
	"github.com/kailas-cloud/pdfrag/internal/usecase/ingest"
)

// OwnerHeader carries the caller's owner id.
const OwnerHeader = "X-Owner-ID"

const (
	defaultMaxUploadBytes = 32 << 20
	multipartMemory       = 8 << 20
	maxBatchFiles         = 50
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the ingestion and chat HTTP API.
type Server struct {
	ingest         Ingester
	chat           Asker
	health         HealthChecker
	usage          UsageReporter
	defaultOwner   string
	maxUploadBytes int64
	logger         *zap.Logger
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(ingester Ingester, asker Asker, health HealthChecker, defaultOwner string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ingest:         ingester,
		chat:           asker,
		health:         health,
		defaultOwner:   defaultOwner,
		maxUploadBytes: defaultMaxUploadBytes,
		logger:         logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrUnsupportedFormat, http.StatusBadRequest, ErrorResponseCodeUnsupportedFormat),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, ErrorResponseCodeInvalidQuery),
		sentinelHandler(domain.ErrInvalidFilter, http.StatusBadRequest, ErrorResponseCodeInvalidFilter),
		sentinelHandler(domain.ErrInvalidChunking, http.StatusBadRequest, ErrorResponseCodeInvalidChunking),
		sentinelHandler(domain.ErrExtraction, http.StatusUnprocessableEntity, ErrorResponseCodeExtractionFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorResponseCodeIndexNotFound),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, ErrorResponseCodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorResponseCodeEmbeddingError),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadGateway, ErrorResponseCodeVectorDimMismatch),
		sentinelHandler(domain.ErrGenerationFailed, http.StatusBadGateway, ErrorResponseCodeGenerationFailed),
		sentinelHandler(domain.ErrGateway, http.StatusServiceUnavailable, ErrorResponseCodeStoreUnavailable),
	}
	return s
}

// WithMaxUpload caps the request body size of ingestion endpoints.
func (s *Server) WithMaxUpload(bytes int64) *Server {
	if bytes > 0 {
		s.maxUploadBytes = bytes
	}
	return s
}

// WithUsage enables GET /v1/usage.
func (s *Server) WithUsage(u UsageReporter) *Server {
	s.usage = u
	return s
}

// Routes mounts every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/ingest", s.Ingest)
		r.Post("/ingest/batch", s.IngestBatch)
		r.Post("/chat", s.Chat)
		r.Delete("/documents", s.DeleteDocuments)
		r.Get("/usage", s.GetUsage)
	})
}

// Ingest handles POST /v1/ingest.
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request) {
	if !s.parseMultipart(w, r) {
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "missing multipart field \"file\"")
		return
	}
	defer func() { _ = file.Close() }()

	if !isPDF(header.Filename) {
		s.handleDomainError(w, r, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, header.Filename))
		return
	}

	res, err := s.ingest.Ingest(r.Context(), s.fileRequest(r, header, file))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, IngestResponse{
		Status:     res.Status,
		Filename:   res.Filename,
		DocumentID: res.DocumentID,
		Chunks:     res.Chunks,
		Message:    res.Message,
	})
}

// IngestBatch handles POST /v1/ingest/batch. Per-file failures never fail the request.
func (s *Server) IngestBatch(w http.ResponseWriter, r *http.Request) {
	if !s.parseMultipart(w, r) {
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 || len(headers) > maxBatchFiles {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest,
			fmt.Sprintf("files count must be between 1 and %d", maxBatchFiles))
		return
	}

	items := make([]BatchIngestItem, len(headers))
	reqs := make([]ingest.Request, 0, len(headers))
	slots := make([]int, 0, len(headers))
	for i, fh := range headers {
		items[i] = BatchIngestItem{Status: ingest.StatusError, Filename: fh.Filename}
		if !isPDF(fh.Filename) {
			items[i].Detail = domain.ErrUnsupportedFormat.Error()
			continue
		}
		f, err := fh.Open()
		if err != nil {
			items[i].Detail = "cannot read upload"
			continue
		}
		defer func() { _ = f.Close() }()
		reqs = append(reqs, s.fileRequest(r, fh, f))
		slots = append(slots, i)
	}

	for j, res := range s.ingest.IngestMany(r.Context(), reqs) {
		item := &items[slots[j]]
		item.Status = res.Status
		if res.Status == ingest.StatusOK {
			chunks := res.Chunks
			item.Chunks = &chunks
		} else {
			item.Detail = res.Message
		}
	}

	resp := BatchIngestResponse{Results: items}
	for _, it := range items {
		if it.Status == ingest.StatusOK {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Chat handles POST /v1/chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ans, err := s.chat.Ask(r.Context(), req.Query, s.owner(r, req.Owner))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

// DeleteDocuments handles DELETE /v1/documents.
func (s *Server) DeleteDocuments(w http.ResponseWriter, r *http.Request) {
	var params DeleteDocumentsParams
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "owner", q, &params.Owner); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "invalid owner: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "title", q, &params.Title); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "invalid title: "+err.Error())
		return
	}

	title := ""
	if params.Title != nil {
		title = *params.Title
	}
	n, err := s.ingest.DeleteDocument(r.Context(), s.owner(r, params.Owner), title)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteDocumentsResponse{Deleted: n})
}

// GetUsage handles GET /v1/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		writeError(w, http.StatusNotFound, ErrorResponseCodeNotFound, "usage tracking is not configured")
		return
	}
	report, err := s.usage.GetReport(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorResponseCodePayloadTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", s.maxUploadBytes))
			return false
		}
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "expected multipart/form-data body")
		return false
	}
	return true
}

func (s *Server) fileRequest(r *http.Request, fh *multipart.FileHeader, f multipart.File) ingest.Request {
	return ingest.Request{
		OwnerID:  s.owner(r, nil),
		Filename: fh.Filename,
		Data:     f,
		Size:     fh.Size,
	}
}

// owner picks the explicit value, then the header, then the configured default.
func (s *Server) owner(r *http.Request, explicit *string) string {
	if explicit != nil && *explicit != "" {
		return *explicit
	}
	if h := strings.TrimSpace(r.Header.Get(OwnerHeader)); h != "" {
		return h
	}
	return s.defaultOwner
}

func isPDF(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	var ee *domain.ExtractionError
	if errors.As(err, &ee) {
		return fmt.Sprintf("%s: %s", domain.ErrExtraction.Error(), ee.Filename)
	}
	sentinels := []error{
		domain.ErrUnsupportedFormat,
		domain.ErrInvalidQuery,
		domain.ErrInvalidFilter,
		domain.ErrInvalidChunking,
		domain.ErrExtraction,
		domain.ErrNotFound,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
		domain.ErrVectorDimMismatch,
		domain.ErrGenerationFailed,
		domain.ErrGateway,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.With(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}
