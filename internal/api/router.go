// Package api assembles the HTTP surface: routes, method checks and the
// middleware chain.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/qbo-converter/internal/api/handlers"
	"github.com/dvloznov/qbo-converter/internal/api/middleware"
	"github.com/rs/zerolog"
)

// Routes lists the handlers to mount. Jobs is nil when no worker runs in
// this process.
type Routes struct {
	Convert    *handlers.ConvertHandler
	Statements *handlers.StatementsHandler
	Jobs       *handlers.JobsHandler
}

// NewRouter creates the server's root handler.
func NewRouter(routes Routes, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/convert", method(http.MethodPost, routes.Convert.Convert))
	mux.HandleFunc("/api/statements/upload", method(http.MethodPost, routes.Statements.Upload))
	mux.HandleFunc("/api/statements/status", method(http.MethodGet, routes.Statements.Status))
	mux.HandleFunc("/api/statements/download", method(http.MethodGet, routes.Statements.Download))

	if routes.Jobs != nil {
		mux.HandleFunc("/api/jobs", method(http.MethodGet, routes.Jobs.ListJobs))
		mux.HandleFunc("/api/jobs/", method(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			routes.Jobs.GetJob(w, r, jobID)
		}))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(mux),
			),
		),
	)
}

func method(allowed string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != allowed {
			w.Header().Set("Allow", allowed)
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}
