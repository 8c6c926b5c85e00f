// Package server exposes the traceability and fit-status engines over HTTP.
//
// Routing uses net/http method+pattern matching. Handlers translate the
// engine error taxonomy onto status codes: not-found 404, unknown type and
// malformed input 400, pending children 409, blocked milestones and missing
// rationale 422.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tracefit/tracefit/internal/config"
	"github.com/tracefit/tracefit/internal/fit"
	"github.com/tracefit/tracefit/internal/seq"
	"github.com/tracefit/tracefit/internal/storage"
	"github.com/tracefit/tracefit/internal/trace"
)

// Server wraps the HTTP listener around the engines.
type Server struct {
	cfg    config.ServerConfig
	store  storage.Storage
	tracer *trace.Engine
	fits   *fit.Engine
	codes  *seq.Allocator
	logger *log.Logger

	httpServer *http.Server
	listener   net.Listener
	mu         sync.RWMutex
}

// New creates a server over the given engines.
func New(cfg config.ServerConfig, store storage.Storage, tracer *trace.Engine, fits *fit.Engine, codes *seq.Allocator, logger *log.Logger) *Server {
	return &Server{
		cfg:    cfg,
		store:  store,
		tracer: tracer,
		fits:   fits,
		codes:  codes,
		logger: logger,
	}
}

// Start listens and serves until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout.Std(),
		WriteTimeout: s.cfg.WriteTimeout.Std(),
		IdleTimeout:  120 * time.Second,
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		timeout := s.cfg.ShutdownTimeout.Std()
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", "addr", listener.Addr().String())
	if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// Handler builds the route table. Exposed for httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /traceability/{entityType}/{entityId}", s.handleTrace)

	mux.HandleFunc("GET /process-levels/{id}", s.handleGetProcessLevel)
	mux.HandleFunc("GET /process-levels/{id}/events", s.handleGetEvents)
	mux.HandleFunc("PUT /process-levels/{id}/fit-judgment", s.handleSetJudgment)
	mux.HandleFunc("POST /process-levels/{id}/consolidate-fit", s.handleConsolidate)
	mux.HandleFunc("POST /process-levels/{id}/signoff", s.handleSignOff)
	mux.HandleFunc("POST /process-levels/{id}/reopen", s.handleReopen)
	mux.HandleFunc("POST /process-levels/{id}/confirm", s.handleConfirm)

	mux.HandleFunc("POST /workshops/{id}/reopen", s.handleWorkshopReopen)
	mux.HandleFunc("POST /workshops/{id}/carryover", s.handleCarryOver)

	mux.HandleFunc("GET /projects/{id}/fit-stats", s.handleFitStats)
	mux.HandleFunc("POST /projects/{id}/next-code", s.handleNextCode)

	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	// Ready means the store answers queries.
	if _, err := s.store.GetFitStatistics(r.Context(), "_ready_probe"); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
