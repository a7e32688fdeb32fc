// Package adminhttp serves a small Echo-based admin surface: a
// liveness probe and the Prometheus scrape endpoint. It carries no
// domain routes — the pipeline has no external API of its own
// (spec.md's Non-goals explicitly exclude one).
package adminhttp

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wraps the Echo instance serving /healthz and /metrics.
type Server struct {
	echo *echo.Echo
	addr string
}

// New builds the admin server, listening on addr once Start is called.
func New(addr string, reg *prometheus.Registry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return &Server{echo: e, addr: addr}
}

// Start runs the server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(s.addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		return s.echo.Shutdown(context.Background())
	}
}
