package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dvloznov/qbo-converter/internal/api/middleware"
	"github.com/dvloznov/qbo-converter/internal/ingest"
	"github.com/dvloznov/qbo-converter/internal/logger"
	"github.com/rs/zerolog"
)

// Multipart fields of the upload form.
const (
	FileField           = "file"
	ProcessingTypeField = "processingType"
	AccountTypeField    = "accountType"
	AccountNumberField  = "accountNumber"
)

// formOverhead is allowed on top of the file limit for the other form fields.
const formOverhead = 1 << 20

// StatementService is the asynchronous upload, status and download flow.
type StatementService interface {
	Upload(ctx context.Context, req ingest.UploadRequest) (*ingest.UploadResult, error)
	Status(ctx context.Context, fileKey, originalName string) (*ingest.Status, error)
	Open(ctx context.Context, fileKey string) (io.ReadCloser, ingest.Download, error)
}

// StatementsHandler handles the asynchronous conversion endpoints.
type StatementsHandler struct {
	svc      StatementService
	maxBytes int64
	log      zerolog.Logger
}

// NewStatementsHandler creates a new statements handler.
func NewStatementsHandler(svc StatementService, maxBytes int64, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{svc: svc, maxBytes: maxBytes, log: log}
}

// Upload handles POST /api/statements/upload
func (h *StatementsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOr(r.Context(), h.log)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+formOverhead)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds the %d MB limit", h.maxBytes>>20))
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, fh, err := r.FormFile(FileField)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file: a file is required")
		return
	}
	defer file.Close()

	res, err := h.svc.Upload(r.Context(), ingest.UploadRequest{
		Filename:       fh.Filename,
		ContentType:    fh.Header.Get("Content-Type"),
		Size:           fh.Size,
		ProcessingType: r.FormValue(ProcessingTypeField),
		AccountType:    r.FormValue(AccountTypeField),
		AccountNumber:  r.FormValue(AccountNumberField),
		Body:           file,
	})
	if err != nil {
		writeServiceError(w, log, err, "Failed to store upload")
		return
	}

	log.Info().
		Str("file_key", res.FileKey).
		Str("original_name", res.OriginalName).
		Int64("bytes", res.Size).
		Msg("Statement uploaded")

	middleware.WriteJSON(w, http.StatusOK, res)
}

// Status handles GET /api/statements/status?fileKey=
func (h *StatementsHandler) Status(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOr(r.Context(), h.log)

	fileKey := r.URL.Query().Get("fileKey")
	if fileKey == "" {
		middleware.WriteError(w, http.StatusBadRequest, "fileKey is required")
		return
	}

	st, err := h.svc.Status(r.Context(), fileKey, r.URL.Query().Get("originalName"))
	if err != nil {
		writeServiceError(w, log, err, "Failed to check conversion status")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, st)
}

// Download handles GET /api/statements/download?fileKey=
func (h *StatementsHandler) Download(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOr(r.Context(), h.log)

	fileKey := r.URL.Query().Get("fileKey")
	if fileKey == "" {
		middleware.WriteError(w, http.StatusBadRequest, "fileKey is required")
		return
	}

	rc, dl, err := h.svc.Open(r.Context(), fileKey)
	if err != nil {
		writeServiceError(w, log, err, "Failed to download converted file")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	if dl.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		log.Warn().Err(err).Str("file_key", fileKey).Msg("Download interrupted")
	}
}
