package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/cfdi-reporter/internal/api/middleware"
	"github.com/dvloznov/cfdi-reporter/internal/cfdi"
	"github.com/dvloznov/cfdi-reporter/internal/logger"
	"github.com/dvloznov/cfdi-reporter/internal/metrics"
	"github.com/dvloznov/cfdi-reporter/internal/render"
	"github.com/dvloznov/cfdi-reporter/internal/report"
	"github.com/dvloznov/cfdi-reporter/internal/session"
)

// FilesField is the multipart field that carries the uploaded XML files.
const FilesField = "files"

// multipartMemory is how much of an upload is kept in memory before spilling
// to temporary files.
const multipartMemory = 32 << 20

// SessionsHandler handles session, upload and report endpoints.
type SessionsHandler struct {
	store     session.Store
	metrics   *metrics.Metrics
	maxUpload int64
	log       zerolog.Logger
}

// NewSessionsHandler creates a new sessions handler. maxUpload limits the
// request body of one upload batch, in bytes.
func NewSessionsHandler(store session.Store, m *metrics.Metrics, maxUpload int64, log zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{
		store:     store,
		metrics:   m,
		maxUpload: maxUpload,
		log:       log,
	}
}

// CreateSession handles POST /api/sessions
func (h *SessionsHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.Create(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create session")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	h.log.Info().Str("session_id", sess.ID).Msg("Session created")

	middleware.WriteJSON(w, http.StatusCreated, map[string]string{
		"session_id": sess.ID,
	})
}

// DeleteSession handles DELETE /api/sessions/{sessionID}
func (h *SessionsHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.store.Delete(r.Context(), sessionID); err != nil {
		h.writeStoreError(w, err, sessionID)
		return
	}

	h.log.Info().Str("session_id", sessionID).Msg("Session deleted")
	w.WriteHeader(http.StatusNoContent)
}

// UploadBatch handles POST /api/sessions/{sessionID}/batches
// The uploaded files replace whatever batch the session held before.
func (h *SessionsHandler) UploadBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "sessionID")

	if _, err := h.store.Get(ctx, sessionID); err != nil {
		h.writeStoreError(w, err, sessionID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[FilesField]
	if len(headers) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("No files uploaded in field %q", FilesField))
		return
	}

	docs, rejected, err := readUploads(headers)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to read upload")
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read uploaded files")
		return
	}

	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{
		"session_id": sessionID,
		"documents":  len(docs),
	})
	result, err := cfdi.ExtractAll(logger.WithContext(ctx, log), docs, h.metrics)
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", sessionID).Msg("Upload cancelled")
		middleware.WriteError(w, http.StatusRequestTimeout, "Upload cancelled")
		return
	}
	for _, f := range rejected {
		h.metrics.DocumentFailed(f.Name, f.Err)
	}

	batch := &session.Batch{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		Records:   result.Records,
		Failures:  append(rejected, result.Failures...),
	}
	if err := h.store.ReplaceBatch(ctx, sessionID, batch); err != nil {
		h.writeStoreError(w, err, sessionID)
		return
	}
	h.metrics.BatchExtracted()

	h.log.Info().
		Str("session_id", sessionID).
		Str("batch_id", batch.ID).
		Int("records", len(batch.Records)).
		Int("failures", len(batch.Failures)).
		Msg("Batch stored")

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"batch_id": batch.ID,
		"records":  batch.Records,
		"read":     result.Read,
		"failures": batch.Failures,
	})
}

// ListRecords handles GET /api/sessions/{sessionID}/records
func (h *SessionsHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.summarize(w, r)
	if !ok {
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records": summary.Records,
		"count":   len(summary.Records),
		"empty":   summary.Empty(),
		"message": emptyMessage(summary),
	})
}

// GetSummary handles GET /api/sessions/{sessionID}/summary
func (h *SessionsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.summarize(w, r)
	if !ok {
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"empty":       summary.Empty(),
		"message":     emptyMessage(summary),
		"tables":      summary.Tables(),
		"date_errors": summary.DateErrors,
	})
}

// GetChart handles GET /api/sessions/{sessionID}/chart
func (h *SessionsHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.summarize(w, r)
	if !ok {
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"series": summary.Chart,
		"empty":  summary.Empty(),
	})
}

// DownloadPDF handles GET /api/sessions/{sessionID}/report.pdf
func (h *SessionsHandler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.summarize(w, r)
	if !ok {
		return
	}

	start := time.Now()
	var buf bytes.Buffer
	if err := render.WritePDF(&buf, summary.Tables()); err != nil {
		h.log.Error().Err(err).Msg("Failed to render PDF")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to render PDF")
		return
	}
	h.metrics.ObserveRender("pdf", start)

	writeAttachment(w, render.PDFFilename, render.PDFContentType, buf.Bytes())
}

// DownloadXLSX handles GET /api/sessions/{sessionID}/report.xlsx
func (h *SessionsHandler) DownloadXLSX(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.summarize(w, r)
	if !ok {
		return
	}

	start := time.Now()
	var buf bytes.Buffer
	if err := render.WriteXLSX(&buf, summary); err != nil {
		h.log.Error().Err(err).Msg("Failed to render XLSX")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to render spreadsheet")
		return
	}
	h.metrics.ObserveRender("xlsx", start)

	writeAttachment(w, render.XLSXFilename, render.XLSXContentType, buf.Bytes())
}

// summarize aggregates the session's current batch with the request's "rfc"
// filter. On failure it has already written the response.
func (h *SessionsHandler) summarize(w http.ResponseWriter, r *http.Request) (*report.Summary, bool) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := h.store.Get(r.Context(), sessionID)
	if err != nil {
		h.writeStoreError(w, err, sessionID)
		return nil, false
	}

	summary := report.Aggregate(sess.Records(), report.Options{
		IssuerFilter: r.URL.Query().Get("rfc"),
	})
	if n := len(summary.DateErrors); n > 0 {
		h.metrics.DateErrors(n)
		h.log.Warn().Str("session_id", sessionID).Int("date_errors", n).Msg("Records with unreadable dates left out")
	}

	return summary, true
}

func (h *SessionsHandler) writeStoreError(w http.ResponseWriter, err error, sessionID string) {
	if errors.Is(err, session.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
		return
	}
	h.log.Error().Err(err).Str("session_id", sessionID).Msg("Session store failed")
	middleware.WriteError(w, http.StatusInternalServerError, "Session store failed")
}

// readUploads loads the uploaded files. Files without an .xml extension are
// not parsed and come back as failures.
func readUploads(headers []*multipart.FileHeader) ([]cfdi.Document, []cfdi.Failure, error) {
	docs := make([]cfdi.Document, 0, len(headers))
	rejected := []cfdi.Failure{}

	for _, fh := range headers {
		name := filepath.Base(fh.Filename)
		if !cfdi.IsXMLName(name) {
			err := fmt.Errorf("unsupported file type %q", filepath.Ext(name))
			rejected = append(rejected, cfdi.Failure{Name: name, Message: err.Error(), Err: err})
			continue
		}

		f, err := fh.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("readUploads: open %q: %w", name, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("readUploads: read %q: %w", name, err)
		}

		docs = append(docs, cfdi.Document{Name: name, Data: data})
	}

	return docs, rejected, nil
}

func writeAttachment(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func emptyMessage(s *report.Summary) string {
	if s.Empty() {
		return report.EmptyMessage
	}
	return ""
}
