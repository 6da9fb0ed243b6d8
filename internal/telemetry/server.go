// Package telemetry serves the debug HTTP surface: Prometheus metrics,
// a health probe and a small JSON API for inspecting live streams.
package telemetry

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/audiobridge/internal/bridge"
	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logging"
	"github.com/tphakala/audiobridge/internal/observability"
)

// Server wraps the echo instance serving the telemetry endpoints.
type Server struct {
	echo    *echo.Echo
	listen  string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewServer builds the telemetry server. Stream data comes from the
// metrics' bridge collector so the HTTP layer and the scraper share one
// registration list.
func NewServer(settings *conf.Settings, metrics *observability.Metrics) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	logger := logging.ForService("telemetry")
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		echo:    e,
		listen:  settings.Telemetry.Listen,
		metrics: metrics,
		logger:  logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealthz)
	s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	s.echo.GET("/api/v1/streams", s.handleStreams)
	s.echo.GET("/api/v1/streams/:id", s.handleStream)
}

// Start serves until Shutdown is called. It blocks; run it on its own
// goroutine.
func (s *Server) Start() error {
	s.logger.Info("telemetry server starting", "listen", s.listen)
	err := s.echo.Start(s.listen)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategorySystem).
			Context("listen", s.listen).
			Build()
	}
	return nil
}

// Shutdown stops the server, waiting up to 5 seconds for in-flight
// requests.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategorySystem).
			Context("operation", "shutdown").
			Build()
	}
	s.logger.Info("telemetry server stopped")
	return nil
}

// ServeHTTP exposes the router for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// streamSummary is the JSON shape of one stream in the API responses.
type streamSummary struct {
	ID     string        `json:"id"`
	Levels bridge.Levels `json:"levels"`
	Stats  bridge.Stats  `json:"stats"`
}

func summarize(st *bridge.Stream) streamSummary {
	return streamSummary{
		ID:     st.ID(),
		Levels: st.Levels(),
		Stats:  st.Stats(),
	}
}

func (s *Server) handleStreams(c echo.Context) error {
	streams := s.metrics.Bridge.Streams()
	out := make([]streamSummary, 0, len(streams))
	for _, st := range streams {
		out = append(out, summarize(st))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleStream(c echo.Context) error {
	st := s.metrics.Bridge.Stream(c.Param("id"))
	if st == nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "stream not found",
		})
	}
	return c.JSON(http.StatusOK, summarize(st))
}
