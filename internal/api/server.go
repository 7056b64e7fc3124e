package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/nao1215/roomscout/internal/database"
	"github.com/nao1215/roomscout/internal/model"
)

// shutdownTimeout bounds how long in-flight requests may run after the
// serving context ends.
const shutdownTimeout = 5 * time.Second

// Store is the read side of the run store used by the API.
type Store interface {
	ListQueries(ctx context.Context) ([]string, error)
	GetRunHistory(ctx context.Context, query string) ([]database.RunSummary, error)
	GetRun(ctx context.Context, id int64) (*model.SearchRun, error)
	GetLatestCompletedRuns(ctx context.Context, query string, n int) ([]*model.SearchRun, error)
	GetListingHistory(ctx context.Context, identifier string) ([]database.Sighting, error)
}

// Server serves stored runs over HTTP.
type Server struct {
	store  Store
	logger *slog.Logger
	router *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a Server over store.
func NewServer(store Store, opts ...Option) *Server {
	s := &Server{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/queries", s.handleQueries).Methods(http.MethodGet)
	api.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", s.handleRun).Methods(http.MethodGet)
	api.HandleFunc("/compare", s.handleCompare).Methods(http.MethodGet)
	api.HandleFunc("/listings/{identifier}", s.handleListing).Methods(http.MethodGet)
	r.Use(s.logRequests)
	s.router = r

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx ends.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQueries(w http.ResponseWriter, r *http.Request) {
	queries, err := s.store.ListQueries(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, queries)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, errMissingQuery)
		return
	}
	history, err := s.store.GetRunHistory(r.Context(), query)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, errInvalidRunID)
		return
	}
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrRunNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, errMissingQuery)
		return
	}
	runs, err := s.store.GetLatestCompletedRuns(r.Context(), query, 2)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if len(runs) < 2 {
		s.writeError(w, http.StatusNotFound, errNotEnoughRuns)
		return
	}
	// runs are newest first
	s.writeJSON(w, http.StatusOK, model.DiffRuns(runs[1], runs[0]))
}

func (s *Server) handleListing(w http.ResponseWriter, r *http.Request) {
	sightings, err := s.store.GetListingHistory(r.Context(), mux.Vars(r)["identifier"])
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if len(sightings) == 0 {
		s.writeError(w, http.StatusNotFound, errListingNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, sightings)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}
