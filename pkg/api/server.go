package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/stevedore-io/stevedore/pkg/catalog"
	"github.com/stevedore-io/stevedore/pkg/events"
	"github.com/stevedore-io/stevedore/pkg/hoststate"
	"github.com/stevedore-io/stevedore/pkg/journal"
	"github.com/stevedore-io/stevedore/pkg/log"
	"github.com/stevedore-io/stevedore/pkg/metrics"
	"github.com/stevedore-io/stevedore/pkg/scheduler"
)

// Server is the HTTP surface: capability-report ingestion, placement
// requests, worker outcomes, and the administrative query interface.
type Server struct {
	echo      *echo.Echo
	addr      string
	repo      *hoststate.Repository
	scheduler *scheduler.Scheduler
	catalog   *catalog.Catalog
	journal   *journal.Journal
	broker    *events.Broker
}

// Options wires a Server. Catalog, Journal and Broker may be nil; their
// endpoints return 404 when absent.
type Options struct {
	Addr       string
	Repository *hoststate.Repository
	Scheduler  *scheduler.Scheduler
	Catalog    *catalog.Catalog
	Journal    *journal.Journal
	Broker     *events.Broker
}

func NewServer(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		addr:      opts.Addr,
		repo:      opts.Repository,
		scheduler: opts.Scheduler,
		catalog:   opts.Catalog,
		journal:   opts.Journal,
		broker:    opts.Broker,
	}

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(observe)

	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	v1 := e.Group("/v1")
	v1.POST("/reports", s.handleReport)
	v1.POST("/placements", s.handlePlacement)
	v1.POST("/outcomes", s.handleOutcome)
	v1.GET("/backends", s.handleListBackends)
	v1.GET("/backends/:host", s.handleGetBackend)
	v1.POST("/backends/:host/disable", s.handleDisableBackend)
	v1.POST("/backends/:host/enable", s.handleEnableBackend)
	v1.GET("/volumes", s.handleListVolumes)
	v1.POST("/volumes", s.handleAddVolume)
	v1.POST("/snapshots", s.handleAddSnapshot)
	v1.GET("/decisions", s.handleDecisions)
	v1.GET("/outcomes", s.handleOutcomes)
	v1.GET("/events", s.handleEvents)

	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.WithComponent("api").Info().Str("addr", s.addr).Msg("http server listening")
	if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// observe records per-request counters and latency.
func observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		status := c.Response().Status
		method := c.Request().Method
		metrics.APIRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		log.WithComponent("api").Debug().
			Str("method", method).
			Str("path", c.Request().URL.Path).
			Int("status", status).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
		return nil
	}
}
