package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-research-relay/internal/domain/ports/repository"
	"telegram-research-relay/internal/infra/logging"
)

// Server is the operator-facing admin API: health, metrics and a read-only view of
// tracked research jobs.
type Server struct {
	jobs   repository.TrackedJobRepository
	apiKey string
	dev    bool
	log    *zerolog.Logger
	now    func() time.Time

	server *http.Server
}

func NewServer(jobs repository.TrackedJobRepository, apiKey string, dev bool, logger *zerolog.Logger) *Server {
	compLog := logger.With().Str("component", "AdminServer").Logger()
	return &Server{
		jobs:   jobs,
		apiKey: apiKey,
		dev:    dev,
		log:    &compLog,
		now:    time.Now,
	}
}

// Router builds the route table. /healthz and /metrics are open; /api/v1 needs the
// bearer key.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/jobs", s.listJobs)
	})
	return r
}

// Start blocks serving on port until Shutdown.
func (s *Server) Start(port int) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Int("port", port).Msg("admin server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// authMiddleware provides simple Bearer token authentication for the admin API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("Admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}

		if tokenParts[1] != s.apiKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type jobView struct {
	ID             string    `json:"id"`
	ChatID         int64     `json:"chat_id"`
	Query          string    `json:"query"`
	TraceID        string    `json:"trace_id,omitempty"`
	SubmittedAt    time.Time `json:"submitted_at"`
	AgeSeconds     int64     `json:"age_seconds"`
	HasPlaceholder bool      `json:"has_placeholder"`
}

type jobsResponse struct {
	Count int       `json:"count"`
	Jobs  []jobView `json:"jobs"`
}

// listJobs returns tracked jobs oldest first, optionally filtered by ?chat_id=.
func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	var chatFilter *int64
	if v := r.URL.Query().Get("chat_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid chat_id", http.StatusBadRequest)
			return
		}
		chatFilter = &id
	}

	now := s.now()
	resp := jobsResponse{Jobs: []jobView{}}
	for _, j := range s.jobs.Snapshot() {
		if chatFilter != nil && j.ChatID != *chatFilter {
			continue
		}
		resp.Jobs = append(resp.Jobs, jobView{
			ID:             j.ID,
			ChatID:         j.ChatID,
			Query:          logging.Redact(j.Query, s.dev),
			TraceID:        j.TraceID,
			SubmittedAt:    j.SubmittedAt,
			AgeSeconds:     int64(j.Age(now).Seconds()),
			HasPlaceholder: j.PlaceholderMessageID != 0,
		})
	}
	resp.Count = len(resp.Jobs)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error().Err(err).Msg("encode jobs response")
	}
}
