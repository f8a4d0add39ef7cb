package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/kirillkom/docs-manager/internal/config"
	"github.com/kirillkom/docs-manager/internal/core/domain"
	"github.com/kirillkom/docs-manager/internal/core/ports"
	"github.com/kirillkom/docs-manager/internal/observability/metrics"
)

const (
	maxUploadBytes = 32 << 20
	maxJSONBytes   = 2 << 20
	serviceName    = "api"
	xlsxMimeType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// WorkbookExporter renders the catalog as a spreadsheet.
type WorkbookExporter interface {
	Write(ctx context.Context, w io.Writer) (int, error)
}

type Services struct {
	Captures   ports.CaptureSession
	Importer   ports.DocumentImporter
	Library    ports.DocumentLibrary
	Classifier ports.TextClassifier
	Exporter   WorkbookExporter
}

type Router struct {
	cfg      config.Config
	services Services
	metrics  *metrics.HTTPServerMetrics
	logger   *slog.Logger
}

func NewRouter(cfg config.Config, services Services, httpMetrics *metrics.HTTPServerMetrics, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:      cfg,
		services: services,
		metrics:  httpMetrics,
		logger:   logger,
	}
}

func (rt *Router) Handler(ctx context.Context) (http.Handler, error) {
	api := http.NewServeMux()
	api.HandleFunc("GET /healthz", rt.healthz)
	api.HandleFunc("GET /openapi.yaml", rt.openAPI)
	api.HandleFunc("POST /v1/captures", rt.createCapture)
	api.HandleFunc("GET /v1/captures", rt.getSession)
	api.HandleFunc("POST /v1/captures/{id}/discard", rt.discardCapture)
	api.HandleFunc("POST /v1/captures/{id}/continue", rt.continueCapture)
	api.HandleFunc("POST /v1/captures/done", rt.finishCaptures)
	api.HandleFunc("POST /v1/documents", rt.importDocument)
	api.HandleFunc("GET /v1/documents", rt.listDocuments)
	api.HandleFunc("GET /v1/documents/content", rt.documentContent)
	api.HandleFunc("POST /v1/documents/rename", rt.renameDocument)
	api.HandleFunc("POST /v1/documents/delete", rt.deleteDocuments)
	api.HandleFunc("POST /v1/classify", rt.classifyText)
	api.HandleFunc("GET /v1/export.xlsx", rt.exportWorkbook)

	validator, err := loadOpenAPIRouter(ctx)
	if err != nil {
		return nil, err
	}

	var onLimited func()
	if rt.metrics != nil {
		onLimited = func() { rt.metrics.RecordRateLimited(serviceName) }
	}

	var handler http.Handler = openAPIValidationMiddleware(validator, api)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, onLimited)

	root := http.NewServeMux()
	root.Handle("/", handler)
	if rt.metrics != nil {
		root.Handle("GET /metrics", rt.metrics.Handler())
		handler = rt.metrics.Middleware(serviceName, root)
	} else {
		handler = root
	}

	return requestIDMiddleware(accessLogMiddleware(rt.logger, handler)), nil
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}

func (rt *Router) createCapture(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	capture, err := rt.services.Captures.Capture(r.Context(), ports.CaptureInput{
		Body:     file,
		MimeType: fileHeader.Header.Get("Content-Type"),
	})
	if err != nil {
		rt.writeError(w, r, "capture", err)
		return
	}
	writeJSON(w, http.StatusCreated, capture)
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.services.Captures.Pending(r.Context()))
}

func (rt *Router) discardCapture(w http.ResponseWriter, r *http.Request) {
	if err := rt.services.Captures.Discard(r.Context(), r.PathValue("id")); err != nil {
		rt.writeError(w, r, "discard capture", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) continueCapture(w http.ResponseWriter, r *http.Request) {
	capture, err := rt.services.Captures.Continue(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, "continue capture", err)
		return
	}
	writeJSON(w, http.StatusOK, capture)
}

func (rt *Router) finishCaptures(w http.ResponseWriter, r *http.Request) {
	filed, err := rt.services.Captures.Done(r.Context())
	if filed == nil {
		filed = []domain.FiledDocument{}
	}
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		rt.logError(r, "finish captures", status, err)
		writeJSON(w, status, map[string]any{
			"error":     errorMessage(status, err),
			"documents": filed,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": filed})
}

func (rt *Router) importDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.services.Importer.Import(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		rt.writeError(w, r, "import document", err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	tag, ok := domain.ParseLibraryTag(query.Get("tag"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tag must be one of all, id, bills, others"})
		return
	}

	docs, err := rt.services.Library.List(r.Context(), domain.LibraryFilter{Query: query.Get("q"), Tag: tag})
	if err != nil {
		rt.writeError(w, r, "list documents", err)
		return
	}
	if docs == nil {
		docs = []domain.StoredDocument{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) documentContent(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("path")
	body, err := rt.services.Library.Open(r.Context(), key)
	if err != nil {
		rt.writeError(w, r, "open document", err)
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		rt.logger.Warn("document stream interrupted", "request_id", requestIDFromContext(r.Context()), "path", key, "error", err)
	}
}

func (rt *Router) renameDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path    string `json:"path"`
		NewName string `json:"new_name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	doc, err := rt.services.Library.Rename(r.Context(), req.Path, req.NewName)
	if err != nil {
		rt.writeError(w, r, "rename document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) deleteDocuments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paths []string `json:"paths"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Paths) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "paths are required"})
		return
	}

	if err := rt.services.Library.Delete(r.Context(), req.Paths); err != nil {
		rt.writeError(w, r, "delete documents", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) classifyText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text     string `json:"text"`
		MimeType string `json:"mime_type"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	preview, err := rt.services.Classifier.Preview(r.Context(), req.Text, req.MimeType)
	if err != nil {
		rt.writeError(w, r, "classify text", err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (rt *Router) exportWorkbook(w http.ResponseWriter, r *http.Request) {
	if rt.services.Exporter == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "export is not configured"})
		return
	}

	var buf bytes.Buffer
	if _, err := rt.services.Exporter.Write(r.Context(), &buf); err != nil {
		rt.writeError(w, r, "export workbook", err)
		return
	}

	filename := "documents_" + time.Now().UTC().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", xlsxMimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := mapErrorToHTTPStatus(err)
	rt.logError(r, op, status, err)
	writeJSON(w, status, map[string]string{"error": errorMessage(status, err)})
}

func (rt *Router) logError(r *http.Request, op string, status int, err error) {
	attrs := []any{
		"request_id", requestIDFromContext(r.Context()),
		"op", op,
		"status", status,
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request failed", attrs...)
		return
	}
	rt.logger.Warn("request rejected", attrs...)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	if err := decoder.Decode(dst); err != nil {
		msg := "invalid json"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			msg = "request body is too large"
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
