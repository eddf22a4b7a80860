// File: internal/infra/web/server.go
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"classroom-ai-grading/internal/domain/model"
	"classroom-ai-grading/internal/infra/jobs"
)

// JobService is the slice of the job manager the HTTP layer needs.
type JobService interface {
	Launch(req jobs.LaunchRequest) (model.JobSnapshot, error)
	Snapshot(jobID string) (model.JobSnapshot, error)
	ReportPath(jobID string) (string, error)
	Cancel(jobID string) error
}

type Server struct {
	svc JobService
	log *zerolog.Logger
}

func NewServer(svc JobService, logger *zerolog.Logger) *Server {
	return &Server{svc: svc, log: logger}
}

// Handler builds the full route tree, operational endpoints included.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/rooms/{roomID}/check", s.startCheck)
		r.Get("/jobs/{jobID}", s.jobStatus)
		r.Get("/jobs/{jobID}/report", s.jobReport)
		r.Delete("/jobs/{jobID}", s.cancelJob)
	})
	return r
}

// requestLogger emits one line per request, after it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Msg("http request")
	})
}
