package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"floravision/internal/logging"
	"floravision/internal/photo"
	"floravision/internal/preflight"
	"floravision/internal/scheduler"
	"floravision/internal/services"
)

const maxBodyBytes = 1 << 20

// Enricher is the enrichment surface the server drives.
type Enricher interface {
	Open(ctx context.Context, path string) (*photo.Record, error)
	StartBatch(paths []string) (*scheduler.Handle, error)
	Get(ctx context.Context, path string) (*photo.Record, bool)
	Records(ctx context.Context) []*photo.Record
	Len(ctx context.Context) int
	Running() []*scheduler.Handle
	Subscribe(buffer int) (<-chan scheduler.Event, func())
}

// Option customizes a Server.
type Option func(*Server)

// WithToken requires a bearer token on every request.
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = strings.TrimSpace(token)
	}
}

// WithChecks runs fn when GET /api/status is called with ?checks=1.
func WithChecks(fn func(context.Context) []preflight.Result) Option {
	return func(s *Server) {
		s.checks = fn
	}
}

// WithLogPath serves the JSON log file on GET /api/logs.
func WithLogPath(path string) Option {
	return func(s *Server) {
		s.logPath = strings.TrimSpace(path)
	}
}

// Server is the HTTP API server.
type Server struct {
	bind     string
	token    string
	logger   *slog.Logger
	enricher Enricher
	checks   func(context.Context) []preflight.Result
	logPath  string

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	stopping chan struct{}
	stopOnce sync.Once
}

// New builds a server bound to bind once Start is called.
func New(bind string, enricher Enricher, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		bind:     strings.TrimSpace(bind),
		logger:   logging.NewComponentLogger(logger, "api-server"),
		enricher: enricher,
		stopping: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler, wrapped in auth and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/enrich", s.handleEnrich)
	mux.HandleFunc("POST /api/batch", s.handleBatch)
	mux.HandleFunc("GET /api/records", s.handleRecords)
	mux.HandleFunc("GET /api/records/{path...}", s.handleRecord)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/logs", s.handleLogs)
	return s.withRequestID(authMiddleware(s.token, mux.ServeHTTP))
}

// Start listens on the bind address and serves until ctx ends or Stop.
func (s *Server) Start(ctx context.Context) error {
	if s.bind == "" {
		return services.Wrap(services.ErrConfiguration, "api", "start", "paths.api_bind is empty", nil)
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.listener = listener
	s.server = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopping:
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down and disconnects event streams.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopping)
		s.mu.Lock()
		srv := s.server
		s.mu.Unlock()
		if srv == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
}

func (s *Server) withRequestID(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := services.WithRequestID(r.Context(), id)
		started := time.Now()
		next(w, r.WithContext(ctx))
		logging.WithContext(ctx, s.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Duration("elapsed", time.Since(started)),
		)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	running := s.enricher.Running()
	status := Status{
		Records: s.enricher.Len(r.Context()),
		Running: make([]TaskView, 0, len(running)),
		Time:    time.Now().UTC(),
	}
	for _, h := range running {
		status.Running = append(status.Running, FromHandle(h))
	}
	if s.checks != nil && truthy(r.URL.Query().Get("checks")) {
		status.Checks = s.checks(r.Context())
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var req EnrichRequest
	if !s.decode(w, r, &req) {
		return
	}
	path := strings.TrimSpace(req.Path)
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "path required")
		return
	}
	rec, err := s.enricher.Open(r.Context(), path)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	paths := make([]string, 0, len(req.Paths))
	for _, p := range req.Paths {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		s.writeError(w, http.StatusBadRequest, "paths required")
		return
	}
	h, err := s.enricher.StartBatch(paths)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, BatchAccepted{TaskID: h.ID(), Total: len(paths)})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	records := s.enricher.Records(r.Context())
	if records == nil {
		records = []*photo.Record{}
	}
	s.writeJSON(w, http.StatusOK, RecordsResponse{Records: records})
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	if path == "" {
		s.writeError(w, http.StatusNotFound, "record not found")
		return
	}
	if !filepath.IsAbs(path) {
		path = "/" + path
	}
	rec, ok := s.enricher.Get(r.Context(), path)
	if !ok {
		s.writeError(w, http.StatusNotFound, "record not found")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func truthy(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}
