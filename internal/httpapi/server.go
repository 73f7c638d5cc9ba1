package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/healthreport/internal/domain"
	apimw "github.com/hamed0406/healthreport/internal/httpapi/middleware"
	"github.com/hamed0406/healthreport/internal/repo"
)

// BatchRunner runs one full batch on demand.
type BatchRunner interface {
	Batch(ctx context.Context) (*domain.Report, error)
}

type Server struct {
	Logger  *zap.Logger
	Reports repo.ReportStore
	Runner  BatchRunner
	Metrics http.Handler
}

func NewServer(l *zap.Logger, reports repo.ReportStore, runner BatchRunner, metrics http.Handler) *Server {
	if metrics == nil {
		metrics = http.NotFoundHandler()
	}
	return &Server{Logger: l, Reports: reports, Runner: runner, Metrics: metrics}
}

// Router wires the routes. runPerMin throttles POST /api/run per caller;
// 0 disables throttling.
func (s *Server) Router(keys apimw.Keys, runPerMin, runBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", s.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireReader(keys))
			r.Get("/report", s.handleReport)
			r.Get("/results", s.handleResults)
		})
		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAdmin(keys))
			r.Use(apimw.RateLimit(runPerMin, runBurst))
			r.Post("/run", s.handleRun)
		})
	})

	return r
}

func (s *Server) latest(w http.ResponseWriter, r *http.Request) (*domain.Report, bool) {
	rep, err := s.Reports.Latest(r.Context())
	if errors.Is(err, repo.ErrNoReport) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no report yet"})
		return nil, false
	}
	if err != nil {
		s.Logger.Warn("report_read_error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "report unavailable"})
		return nil, false
	}
	return rep, true
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.latest(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(rep.HTML))
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.latest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	// A started batch runs to completion even if the caller goes away.
	rep, err := s.Runner.Batch(context.WithoutCancel(r.Context()))
	if err != nil {
		s.Logger.Error("api_batch_error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "batch failed"})
		return
	}
	s.Logger.Info("api_batch_done", zap.Int("results", len(rep.Results)))
	writeJSON(w, http.StatusOK, rep)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
