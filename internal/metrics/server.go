package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server timeouts.
const (
	serverReadTimeout  = 5 * time.Second
	serverWriteTimeout = 10 * time.Second
	serverIdleTimeout  = 30 * time.Second
)

// SnapshotFunc returns the value served at /snapshot.
type SnapshotFunc func() any

// Server exposes /metrics, liveness probes and the latest dashboard
// snapshot over HTTP.
type Server struct {
	requested string
	http      *http.Server
	logger    *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewServer builds the server. A nil gatherer serves the default registry;
// a nil snapshot leaves /snapshot unregistered.
func NewServer(addr string, gatherer prometheus.Gatherer, snapshot SnapshotFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	metricsHandler := promhttp.Handler()
	if gatherer != nil {
		metricsHandler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
			ErrorLog:      slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
			ErrorHandling: promhttp.ContinueOnError,
		})
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	for _, path := range []string{"/health", "/healthz", "/ready", "/readyz"} {
		mux.HandleFunc("GET "+path, ok)
	}
	if snapshot != nil {
		mux.HandleFunc("GET /snapshot", serveSnapshot(snapshot, logger))
	}

	return &Server{
		requested: addr,
		logger:    logger,
		http: &http.Server{
			Handler:      mux,
			ReadTimeout:  serverReadTimeout,
			WriteTimeout: serverWriteTimeout,
			IdleTimeout:  serverIdleTimeout,
		},
	}
}

func ok(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "ok")
}

func serveSnapshot(snapshot SnapshotFunc, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snapshot()); err != nil {
			logger.Warn("snapshot_encode_failed", "error", err)
		}
	}
}

// Handler returns the request multiplexer, for tests that serve it through
// httptest.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start binds the listen address and serves in the background. A bind
// failure (port in use, bad address) is returned to the caller.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.requested)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.requested, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("metrics_server_listening", "addr", ln.Addr().String())
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics_server_error", "error", err)
		}
	}()
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Debug("metrics_server_shutting_down")
	return s.http.Shutdown(ctx)
}

// Addr is the bound address once started, otherwise the requested one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.requested
}
