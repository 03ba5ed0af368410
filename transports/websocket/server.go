package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"aitherapist/core"
)

// Server exposes the hub at /ws next to a /healthz probe.
type Server struct {
	hub    *Hub
	server *http.Server
	logger *core.Logger
}

func NewServer(addr string, hub *Hub, logger *core.Logger) *Server {
	if logger == nil {
		logger = core.GetLogger()
	}
	s := &Server{hub: hub, logger: logger.With(map[string]interface{}{"component": "ws_server"})}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", s.hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("session server listening", "addr", s.server.Addr)
		errCh <- s.server.ListenAndServe()
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
		return s.server.Shutdown(shutdownCtx)
	}
}
