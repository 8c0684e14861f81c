package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pesio-ai/be-hse-inspections/internal/auth"
	"github.com/pesio-ai/be-hse-inspections/internal/logger"
)

// NewRouter wires the HTTP routes. Everything under /api/v1 requires a
// verified principal.
func NewRouter(h *HTTPHandler, verifier *auth.Verifier, log *logger.Logger, timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	if timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(verifier.Middleware)

		r.Get("/stages", h.ListStages)
		r.Get("/pending", h.PendingForRole)

		r.Route("/targets", func(r chi.Router) {
			r.Post("/", h.ReportTarget)
			r.Get("/", h.ListTargets)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetTarget)
				r.Get("/timeline", h.GetTimeline)
				r.Post("/verify", h.Verify)
				r.Post("/start", h.StartStage)
				r.Get("/audit", h.GetAuditTrail)
			})
		})
	})

	return r
}

// RequestLogger logs one line per request with zerolog.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			evt := log.Info()
			if ww.Status() >= http.StatusInternalServerError {
				evt = log.Error()
			}
			evt.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("HTTP request")
		})
	}
}
