package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/intellidocs/internal/config"
	"github.com/kirillkom/intellidocs/internal/core/domain"
	"github.com/kirillkom/intellidocs/internal/core/ports"
	"github.com/kirillkom/intellidocs/internal/observability/metrics"
)

const (
	serviceName      = "api"
	userIDHeader     = "X-User-Id"
	multipartMemory  = 32 << 20
	defaultListLimit = 50
	maxListLimit     = 500
	functionsPrefix  = "/functions/v1/"
)

type Option func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) Option {
	return func(rt *Router) {
		rt.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

type Router struct {
	cfg       config.Config
	ingestor  ports.DocumentIngestor
	processor ports.DocumentProcessor
	reader    ports.DocumentReader
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger
	validator *requestValidator
}

func NewRouter(
	cfg config.Config,
	ingestor ports.DocumentIngestor,
	processor ports.DocumentProcessor,
	reader ports.DocumentReader,
	opts ...Option,
) (*Router, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	rt := &Router{
		cfg:       cfg,
		ingestor:  ingestor,
		processor: processor,
		reader:    reader,
		logger:    slog.Default(),
		validator: validator,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("OPTIONS /functions/v1/process-document", rt.preflight)
	mux.HandleFunc("POST /functions/v1/process-document", rt.processDocument)
	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/documents", rt.listDocuments)
	mux.HandleFunc("GET /v1/documents/export", rt.exportDocuments)
	mux.HandleFunc("GET /v1/documents/{id}", rt.getDocument)

	var handler http.Handler = mux
	handler = rt.validator.middleware(handler)
	handler = maxBodyMiddleware(handler, rt.bodyLimit())
	handler = backpressureMiddleware(handler, rt.cfg.APIBackpressureMaxInFlight, rt.cfg.APIBackpressureWait, rt.rejected("backpressure"))
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.rejected("rate_limit"))
	handler = corsMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

// bodyLimit leaves room for base64 inflation of the trigger payload.
func (rt *Router) bodyLimit() int64 {
	if rt.cfg.MaxUploadBytes <= 0 {
		return 0
	}
	return rt.cfg.MaxUploadBytes*4/3 + 1<<20
}

func (rt *Router) rejected(reason string) func() {
	return func() {
		if rt.metrics != nil {
			rt.metrics.RecordRejected(serviceName, reason)
		}
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type processDocumentRequest struct {
	DocumentID string `json:"documentId"`
	FileData   string `json:"fileData"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mimeType"`
}

// corsMiddleware covers the browser-facing function routes, error responses included.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, functionsPrefix) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
		next.ServeHTTP(w, r)
	})
}

func (rt *Router) preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// processDocument is the upload trigger: one request runs the whole pipeline.
func (rt *Router) processDocument(w http.ResponseWriter, r *http.Request) {
	var req processDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return
	}

	result := rt.processor.Process(r.Context(), domain.ProcessRequest{
		DocumentID: req.DocumentID,
		Payload:    domain.Base64Payload(req.FileData),
		Filename:   req.Filename,
		MimeType:   req.MimeType,
	})
	writeJSON(w, mapResultToHTTPStatus(result), result)
}

type uploadResponse struct {
	Document *domain.Document        `json:"document"`
	Result   domain.ProcessingResult `json:"result"`
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		status := mapErrorToHTTPStatus(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		writeError(w, status, fmt.Sprintf("parse multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	if rt.cfg.MaxUploadBytes > 0 && fileHeader.Size > rt.cfg.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", rt.cfg.MaxUploadBytes))
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read upload: %v", err))
		return
	}

	doc, result, err := rt.ingestor.Upload(r.Context(), domain.UploadRequest{
		UserID:   strings.TrimSpace(r.Header.Get(userIDHeader)),
		Filename: fileHeader.Filename,
		MimeType: detectMimeType(fileHeader, data),
		Data:     data,
	})
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	status := http.StatusCreated
	switch {
	case !result.Success:
		status = mapResultToHTTPStatus(result)
	case doc.Status == domain.StatusProcessing:
		status = http.StatusAccepted
	}
	writeJSON(w, status, uploadResponse{Document: doc, Result: result})
}

func detectMimeType(header *multipart.FileHeader, data []byte) string {
	if ct := strings.TrimSpace(header.Header.Get("Content-Type")); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(header.Filename))); byExt != "" {
		return byExt
	}
	return http.DetectContentType(data)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", r.PathValue("id"), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid document id: %v", err))
		return
	}

	doc, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type listDocumentsParams struct {
	UserID   *string
	Category *string
	Status   *string
	Limit    *int
}

func bindListParams(r *http.Request) (listDocumentsParams, error) {
	var params listDocumentsParams
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "user_id", query, &params.UserID); err != nil {
		return params, fmt.Errorf("invalid user_id: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "category", query, &params.Category); err != nil {
		return params, fmt.Errorf("invalid category: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "status", query, &params.Status); err != nil {
		return params, fmt.Errorf("invalid status: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &params.Limit); err != nil {
		return params, fmt.Errorf("invalid limit: %w", err)
	}
	return params, nil
}

func (p listDocumentsParams) filter(defaultLimit int) (domain.DocumentFilter, error) {
	filter := domain.DocumentFilter{Limit: defaultLimit}
	if p.UserID != nil {
		filter.UserID = strings.TrimSpace(*p.UserID)
	}
	if p.Category != nil && *p.Category != "" {
		category, ok := domain.ParseCategory(*p.Category)
		if !ok {
			return filter, domain.WrapError(domain.ErrInvalidInput, "list documents", fmt.Errorf("unknown category %q", *p.Category))
		}
		filter.Category = category
	}
	if p.Status != nil && *p.Status != "" {
		status, ok := domain.ParseStatus(*p.Status)
		if !ok {
			return filter, domain.WrapError(domain.ErrInvalidInput, "list documents", fmt.Errorf("unknown status %q", *p.Status))
		}
		filter.Status = status
	}
	if p.Limit != nil {
		filter.Limit = min(max(*p.Limit, 1), maxListLimit)
	}
	return filter, nil
}

func (rt *Router) documentFilter(w http.ResponseWriter, r *http.Request, defaultLimit int) (domain.DocumentFilter, bool) {
	params, err := bindListParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return domain.DocumentFilter{}, false
	}
	filter, err := params.filter(defaultLimit)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return domain.DocumentFilter{}, false
	}
	return filter, true
}

type listDocumentsResponse struct {
	Documents []domain.Document `json:"documents"`
	Count     int               `json:"count"`
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	filter, ok := rt.documentFilter(w, r, defaultListLimit)
	if !ok {
		return
	}
	docs, err := rt.reader.List(r.Context(), filter)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, listDocumentsResponse{Documents: docs, Count: len(docs)})
}

func (rt *Router) exportDocuments(w http.ResponseWriter, r *http.Request) {
	filter, ok := rt.documentFilter(w, r, maxListLimit)
	if !ok {
		return
	}
	docs, err := rt.reader.List(r.Context(), filter)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	payload, err := buildDocumentsXLSX(docs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rt.logger.Info("documents_exported",
		"request_id", requestIDFromContext(r.Context()),
		"rows", len(docs),
		"bytes", len(payload),
	)

	filename := fmt.Sprintf("documents-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Success: false, Error: message})
}
