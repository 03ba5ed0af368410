package audioproxy

import (
	"context"
	"errors"
	"net/http"
	"time"

	"aitherapist/core"
)

// Server hosts the handler at /api/tts.
type Server struct {
	server *http.Server
	logger *core.Logger
}

func NewServer(config Config, synth Synthesizer, logger *core.Logger) *Server {
	if config.Addr == "" {
		config.Addr = DefaultConfig().Addr
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	mux := http.NewServeMux()
	mux.Handle("/api/tts", NewHandler(synth, config, logger))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return &Server{
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.With(map[string]interface{}{"component": "audio_proxy_server"}),
	}
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("audio proxy listening", "addr", s.server.Addr)
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
