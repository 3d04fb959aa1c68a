// Package admin serves the operator control plane: scraping status and
// toggle, a one-off fetch for debugging, health and metrics.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"scrapemonitor/packages/metrics"
)

const DefaultAddress = ":8090"

// ServerOptions configures the HTTP server. WriteTimeout must cover a full
// proxied fetch for /scrape-url.
type ServerOptions struct {
	Addr              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

type Server struct {
	http *http.Server
}

func NewRouter(tg Toggle, fetcher Fetcher) *http.ServeMux {
	mux := http.NewServeMux()
	h := NewHandlers(tg, fetcher)

	mux.HandleFunc("GET /status", h.Status)
	mux.HandleFunc("POST /toggle", h.Toggle)
	mux.HandleFunc("GET /scrape-url/{id}", h.FetchOne)
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

func NewServer(tg Toggle, fetcher Fetcher, opts ServerOptions) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddress
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.ReadHeaderTimeout == 0 {
		opts.ReadHeaderTimeout = 2 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 90 * time.Second
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 60 * time.Second
	}

	return &Server{
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           NewRouter(tg, fetcher),
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: opts.ReadHeaderTimeout,
			WriteTimeout:      opts.WriteTimeout,
			IdleTimeout:       opts.IdleTimeout,
		},
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting admin server", "address", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down admin server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
