// Package server exposes posture results over a read-only HTTP API.
//
// There are no mutating routes: restart, exit and capture toggles are only
// reachable from inside the process or the CLI.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/gzhole/hostguard/internal/engine"
	"github.com/gzhole/hostguard/internal/guard"
	"github.com/gzhole/hostguard/internal/rootcheck"
)

// Checker is the subset of the engine the API serves.
type Checker interface {
	IsRooted() (bool, error)
	IsDebugged() bool
	CaptureState() guard.CaptureState
	Snapshot() engine.Posture
}

// Handler serves the posture routes.
type Handler struct {
	checker Checker
	metrics http.Handler
}

// NewHandler creates a handler. metrics may be nil, in which case /metrics
// is not registered.
func NewHandler(checker Checker, metrics http.Handler) *Handler {
	return &Handler{checker: checker, metrics: metrics}
}

// RegisterRoutes registers every route on r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/posture", h.posture).Methods(http.MethodGet)
	v1.HandleFunc("/root", h.root).Methods(http.MethodGet)
	v1.HandleFunc("/debug", h.debug).Methods(http.MethodGet)
	v1.HandleFunc("/display", h.display).Methods(http.MethodGet)
}

// Router builds a router with every route behind the limiter.
func (h *Handler) Router(limiter *Limiter) *mux.Router {
	r := mux.NewRouter()
	if limiter != nil {
		r.Use(limiter.Middleware)
	}
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) posture(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.checker.Snapshot())
}

type rootResponse struct {
	Rooted    bool   `json:"rooted"`
	Attempted int    `json:"attempted,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (h *Handler) root(w http.ResponseWriter, _ *http.Request) {
	rooted, err := h.checker.IsRooted()
	if err != nil {
		resp := rootResponse{Error: err.Error()}
		var ice *rootcheck.IntegrityCheckError
		if errors.As(err, &ice) {
			resp.Attempted = ice.Attempted
		}
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, rootResponse{Rooted: rooted})
}

func (h *Handler) debug(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"debugged": h.checker.IsDebugged()})
}

func (h *Handler) display(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]guard.CaptureState{"capture": h.checker.CaptureState()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "hostguard: write response: %v\n", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Server is the posture API's HTTP server.
type Server struct {
	srv *http.Server
}

// New creates a server listening on addr.
func New(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
