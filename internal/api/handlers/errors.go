package handlers

import (
	"errors"
	"net/http"

	"github.com/dvloznov/qbo-converter/internal/api/middleware"
	"github.com/dvloznov/qbo-converter/internal/domain"
	"github.com/dvloznov/qbo-converter/internal/ingest"
	"github.com/rs/zerolog"
)

// writeServiceError maps service errors onto status codes. Anything not
// recognised is a server-side failure: it is logged and the client gets
// fallback instead of the error text.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error, fallback string) {
	var verr *ingest.ValidationError
	switch {
	case errors.As(err, &verr):
		middleware.WriteError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, domain.ErrNoTransactions):
		middleware.WriteError(w, http.StatusUnprocessableEntity, "No valid transactions found")
	case errors.Is(err, ingest.ErrUnknownUpload):
		middleware.WriteError(w, http.StatusNotFound, "Upload not found")
	case errors.Is(err, ingest.ErrNotReady):
		middleware.WriteError(w, http.StatusConflict, "Converted file is not ready yet")
	default:
		log.Error().Err(err).Msg(fallback)
		middleware.WriteError(w, http.StatusInternalServerError, fallback)
	}
}
