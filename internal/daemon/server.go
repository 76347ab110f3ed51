package daemon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/macrokit/macroguard/internal/config"
	"github.com/macrokit/macroguard/internal/history"
	"github.com/macrokit/macroguard/internal/logger"
	"github.com/macrokit/macroguard/internal/resource"
	"github.com/macrokit/macroguard/internal/supervisor"
)

// Server exposes the supervisor's monitoring surface over HTTP: per-macro
// status, system health history, alert history, and a live SSE alert feed.
type Server struct {
	httpServer  *http.Server
	handlers    *Handlers
	broadcaster *SSEBroadcaster
	lifecycle   *Lifecycle
	port        int
}

// NewServer creates a new status server
func NewServer(cfg *config.Config, sup *supervisor.Supervisor, monitor *resource.Monitor, emergency *resource.Emergency, store history.Store, version string) *Server {
	handlers := NewHandlers(sup, monitor, emergency, store, version)
	broadcaster := NewSSEBroadcaster()
	lifecycle := NewLifecycle(cfg.Daemon)

	port := cfg.Daemon.Port
	if port == 0 {
		port = 8763
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handlers.Health)
	mux.HandleFunc("GET /api/macros", handlers.Macros)
	mux.HandleFunc("POST /api/macros", handlers.Register)
	mux.HandleFunc("GET /api/macros/", handlers.MacroDetail)
	mux.HandleFunc("POST /api/macros/unregister/", handlers.Unregister)
	mux.HandleFunc("POST /api/macros/resume/", handlers.Resume)
	mux.HandleFunc("POST /api/events", handlers.SubmitEvent)
	mux.HandleFunc("GET /api/system", handlers.System)
	mux.HandleFunc("GET /api/alerts", handlers.Alerts)

	mux.HandleFunc("GET /sse/alerts", broadcaster.ServeHTTP)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("127.0.0.1:%d", port),
			Handler:           corsMiddleware(mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
		handlers:    handlers,
		broadcaster: broadcaster,
		lifecycle:   lifecycle,
		port:        port,
	}
}

// Broadcaster returns the SSE broadcaster so the alert dispatcher can be
// wired to it as a sink
func (s *Server) Broadcaster() *SSEBroadcaster {
	return s.broadcaster
}

// Start starts the server
func (s *Server) Start(ctx context.Context) error {
	if err := s.lifecycle.WritePID(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	s.broadcaster.Start(ctx)

	logger.Info().
		Int("port", s.port).
		Str("url", fmt.Sprintf("http://127.0.0.1:%d", s.port)).
		Msg("Starting macroguard status daemon")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Server error")
		}
	}()

	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	logger.Info().Msg("Stopping macroguard status daemon")

	s.broadcaster.Stop()
	_ = s.lifecycle.RemovePID()

	return s.httpServer.Shutdown(ctx)
}

// Port returns the server port
func (s *Server) Port() int {
	return s.port
}

// Lifecycle returns the lifecycle manager
func (s *Server) Lifecycle() *Lifecycle {
	return s.lifecycle
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
