// Package api exposes a read-only HTTP view of a live runner.
package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rxtech-lab/argo-engine/internal/live"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/version"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"go.uber.org/zap"
)

// StatusProvider is implemented by live.Runner.
type StatusProvider interface {
	Status() live.Status
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// PnlResponse is the body of GET /pnl.
type PnlResponse struct {
	Instrument string             `json:"instrument"`
	Pnl        map[string]float64 `json:"pnl"`
	Total      float64            `json:"total"`
}

// DefaultStreamInterval is how often /ws/status pushes a snapshot.
const DefaultStreamInterval = time.Second

// Server routes the status endpoints.
type Server struct {
	provider       StatusProvider
	router         *mux.Router
	upgrader       websocket.Upgrader
	streamInterval time.Duration
	log            *logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithStreamInterval sets the push interval of /ws/status.
func WithStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.streamInterval = d
		}
	}
}

// NewServer registers the routes for provider.
func NewServer(provider StatusProvider, log *logger.Logger, opts ...Option) *Server {
	s := &Server{
		provider: provider,
		router:   mux.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		streamInterval: DefaultStreamInterval,
		log:            log.Named("api"),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(s.logRequests)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/pnl", s.handlePnl).Methods(http.MethodGet)
	s.router.HandleFunc("/ws/status", s.handleStatusStream).Methods(http.MethodGet)

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to listen", err)
	}

	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("status api listening", zap.String("addr", listener.Addr().String()))
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}

		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, HealthResponse{Status: "ok", Version: version.GetVersion()})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.provider.Status())
}

func (s *Server) handlePnl(w http.ResponseWriter, _ *http.Request) {
	status := s.provider.Status()

	s.writeJSON(w, PnlResponse{
		Instrument: status.Instrument,
		Pnl:        status.Pnl,
		Total:      status.TotalPnl,
	})
}

// handleStatusStream pushes a status snapshot every streamInterval until the
// client goes away or stops reading.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))

		return
	}
	defer conn.Close()

	// the reader only exists to notice the client closing the connection
	closed := make(chan struct{})

	go func() {
		defer close(closed)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	for {
		_ = conn.SetWriteDeadline(time.Now().Add(s.streamInterval + 5*time.Second))

		if err := conn.WriteJSON(s.provider.Status()); err != nil {
			s.log.Debug("status stream closed", zap.Error(err))

			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to encode response", zap.Error(err))
	}
}
