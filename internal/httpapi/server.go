package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/topologycheck/internal/domain"
	apimw "github.com/hamed0406/topologycheck/internal/httpapi/middleware"
	"github.com/hamed0406/topologycheck/internal/repo"
)

const (
	defaultRecent = 50
	maxRecent     = 500
)

// CheckRunner runs the probe once and stores the verdict.
type CheckRunner interface {
	RunOnce(ctx context.Context) domain.VerdictRecord
}

type Server struct {
	Logger   *zap.Logger
	Probe    string
	Verdicts repo.VerdictStore
	Runner   CheckRunner
}

func NewServer(l *zap.Logger, probe string, vs repo.VerdictStore, runner CheckRunner) *Server {
	return &Server{Logger: l, Probe: probe, Verdicts: vs, Runner: runner}
}

func (s *Server) Router(keys apimw.Keys) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(cors.AllowAll().Handler)
	r.Use(s.accessLog)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.With(apimw.RequireAny(keys)).Get("/health", s.handleHealth)
		r.With(apimw.RequireAny(keys)).Get("/verdicts", s.handleVerdicts)
		r.With(apimw.RequireAdmin(keys)).Post("/check", s.handleCheck)
	})

	return r
}

// handleHealth answers with the latest verdict; the status code mirrors it so
// load balancers and uptime monitors can consume it directly.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	v, err := s.Verdicts.Latest(r.Context(), s.Probe)
	if errors.Is(err, repo.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no verdict yet"})
		return
	}
	if err != nil {
		s.Logger.Warn("latest_verdict_error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "latest error"})
		return
	}
	writeJSON(w, verdictStatus(v.Verdict), v)
}

func (s *Server) handleVerdicts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	out, err := s.Verdicts.Recent(r.Context(), s.Probe, limit)
	if err != nil {
		s.Logger.Warn("recent_verdicts_error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list error"})
		return
	}
	if out == nil {
		out = []domain.VerdictRecord{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	rec := s.Runner.RunOnce(r.Context())
	s.Logger.Info("manual_check",
		zap.String("probe", s.Probe),
		zap.Bool("healthy", rec.Healthy),
	)
	writeJSON(w, verdictStatus(rec.Verdict), rec)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
		)
	})
}

func verdictStatus(v domain.Verdict) int {
	if v.Healthy {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultRecent, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(n, maxRecent), nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
