package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bookexchange/internal/logging"
)

// Server runs an http.Server until its context is cancelled. It satisfies
// suture.Service so it can sit under a supervisor next to background workers.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
}

func NewServer(port string, handler http.Handler, shutdownTimeout time.Duration) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &Server{
		srv: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

// Serve blocks until ctx is done or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.srv.Addr).Msg("http server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		logging.Info().Msg("shutting down http server")
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) String() string {
	return "http-server" + s.srv.Addr
}
