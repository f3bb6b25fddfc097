package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/voyahub/busbridge/internal/logging"
)

// Server runs the bridge HTTP frontend. Binding is split from serving so the
// caller can tell a dead address from a crashed serve loop.
type Server struct {
	httpServer *http.Server
	logger     logging.ServiceLogger

	mu        sync.Mutex
	boundAddr string
}

func NewServer(addr string, handler http.Handler, logger logging.ServiceLogger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start binds the address and serves in the background. A bind failure is
// returned synchronously; serve-loop failures arrive on the channel, which
// closes when the server stops.
func (s *Server) Start() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.boundAddr = ln.Addr().String()
	s.mu.Unlock()

	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	s.logger.Info("http server listening", logging.LogFields{"addr": ln.Addr().String()})
	return errs, nil
}

// Addr returns the bound address once Start succeeded, useful when listening
// on port 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.boundAddr != "" {
		return s.boundAddr
	}
	return s.httpServer.Addr
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
