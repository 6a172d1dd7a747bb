package infra

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Drainer is a long-running component that must finish in-flight work during
// shutdown, such as the job worker pool.
type Drainer interface {
	Shutdown(ctx context.Context) error
}

// HTTPServer wraps http.Server and owns the shutdown sequence: the listener
// stops accepting first, then each registered drainer finishes its in-flight
// work.
type HTTPServer struct {
	server   *http.Server
	drainers []Drainer
}

// NewHTTPServer creates a configured HTTP server. Drainers are shut down in
// registration order after the listener closes.
func NewHTTPServer(cfg *Config, handler http.Handler, drainers ...Drainer) *HTTPServer {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	return &HTTPServer{server: srv, drainers: drainers}
}

// Start runs the HTTP server in the current goroutine.
func (s *HTTPServer) Start() error {
	if s.server == nil {
		return nil
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the listener and then drains the registered
// components, all bounded by ctx.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	for _, d := range s.drainers {
		err = errors.Join(err, d.Shutdown(ctx))
	}
	return err
}
