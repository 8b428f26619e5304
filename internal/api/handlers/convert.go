package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/qbo-converter/internal/api/middleware"
	"github.com/dvloznov/qbo-converter/internal/extract"
	"github.com/dvloznov/qbo-converter/internal/logger"
	"github.com/dvloznov/qbo-converter/internal/ofx"
	"github.com/dvloznov/qbo-converter/internal/pipeline"
	"github.com/rs/zerolog"
)

// CSVFilesField is the multipart field carrying the CSV exports.
const CSVFilesField = "csvFiles"

// CSVConverter converts CSV sources into one QBO document.
type CSVConverter interface {
	ConvertCSV(ctx context.Context, sources ...extract.Source) (pipeline.Result, error)
}

// ConvertHandler handles the synchronous conversion endpoint.
type ConvertHandler struct {
	converter CSVConverter
	maxBytes  int64
	now       func() time.Time
	log       zerolog.Logger
}

// NewConvertHandler creates a new convert handler.
func NewConvertHandler(converter CSVConverter, maxBytes int64, log zerolog.Logger) *ConvertHandler {
	return &ConvertHandler{
		converter: converter,
		maxBytes:  maxBytes,
		now:       time.Now,
		log:       log,
	}
}

// Convert handles POST /api/convert
func (h *ConvertHandler) Convert(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOr(r.Context(), h.log)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds the %d MB limit", h.maxBytes>>20))
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "No CSV files provided")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[CSVFilesField]
	if len(headers) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "No CSV files provided")
		return
	}

	sources := make([]extract.Source, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			log.Error().Err(err).Str("file", fh.Filename).Msg("Failed to open uploaded CSV")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to read uploaded files")
			return
		}
		defer func(f multipart.File) { _ = f.Close() }(f)
		sources = append(sources, extract.Source{Name: fh.Filename, Reader: f})
	}

	result, err := h.converter.ConvertCSV(r.Context(), sources...)
	for _, fe := range result.Stats.FileErrors {
		log.Warn().Str("file", fe.Name).Err(fe.Err).Msg("CSV file read stopped early")
	}
	if err != nil {
		writeServiceError(w, log, err, "Failed to convert files")
		return
	}

	log.Info().
		Int("files", len(sources)).
		Int("transactions", result.Transactions).
		Int("dropped", result.Dropped).
		Str("start", result.Start.String()).
		Str("end", result.End.String()).
		Msg("Converted CSV files")

	filename := fmt.Sprintf("combined_%s.qbo", h.now().Format("20060102150405"))
	w.Header().Set("Content-Type", ofx.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.QBO)))
	w.Header().Set("X-Transaction-Count", strconv.Itoa(result.Transactions))
	w.Header().Set("X-Rows-Dropped", strconv.Itoa(result.Dropped))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.QBO); err != nil {
		log.Warn().Err(err).Msg("Failed to write QBO response")
	}
}
