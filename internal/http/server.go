package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/agentgate/internal/observability/logger"
)

// Server envuelve http.Server con timeouts sanos y shutdown ordenado.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// ListenAndServe bloquea hasta shutdown o error.
func (s *Server) ListenAndServe() error {
	logger.L().Info("http server listening", logger.String("addr", s.srv.Addr))
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drena las conexiones en curso con el deadline del contexto.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.L().Info("http server shutting down")
	return s.srv.Shutdown(ctx)
}
