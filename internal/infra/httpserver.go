package infra

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

const readHeaderTimeout = 5 * time.Second

// HTTPServer runs the API until its context is cancelled, then drains
// in-flight requests within the shutdown grace period.
type HTTPServer struct {
	server   *http.Server
	grace    time.Duration
	listener net.Listener
}

// NewHTTPServer creates a server bound to cfg.Port. Write timeouts are long
// because plan creation uploads every step illustration inline.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handler,
			ReadTimeout:       cfg.HTTPReadTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
			WriteTimeout:      cfg.HTTPWriteTimeout,
			IdleTimeout:       cfg.HTTPIdleTimeout,
		},
		grace: cfg.HTTPIdleTimeout,
	}
}

// Listen binds the listening socket. Serve calls it when it was not called
// before, tests call it to learn the chosen address.
func (s *HTTPServer) Listen() (net.Addr, error) {
	if s.listener == nil {
		ln, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			return nil, err
		}
		s.listener = ln
	}
	return s.listener.Addr(), nil
}

// Serve blocks until ctx is done or the server fails. A clean shutdown
// returns nil.
func (s *HTTPServer) Serve(ctx context.Context) error {
	if _, err := s.Listen(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.grace)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
