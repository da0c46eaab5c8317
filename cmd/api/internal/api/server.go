package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"thirdcoast.systems/scribe/internal/pipeline"
	"thirdcoast.systems/scribe/internal/results"
	"thirdcoast.systems/scribe/internal/units"
)

type Submitter interface {
	Submit(ctx context.Context, req pipeline.Request) (pipeline.Submission, error)
}

type Searcher interface {
	Search(ctx context.Context, p results.SearchParams) ([]results.Hit, error)
}

// Options configures a Server. Search and Health may be nil.
type Options struct {
	Submitter Submitter
	Units     units.Store
	Search    Searcher
	Health    func(ctx context.Context) error

	// MaxItems caps collection size when a request asks for more, or for nothing.
	MaxItems     int
	PollTimeout  time.Duration
	PollInterval time.Duration
	// MinPollInterval is the fastest a wait request may poll (default one second).
	MinPollInterval time.Duration
}

type Server struct {
	*echo.Echo
	opts   Options
	poller *pipeline.Poller
}

func NewServer(opts Options) *Server {
	if opts.MinPollInterval <= 0 {
		opts.MinPollInterval = time.Second
	}
	e := echo.New()
	s := &Server{
		Echo:   e,
		opts:   opts,
		poller: &pipeline.Poller{Store: opts.Units},
	}
	s.setupMiddleware()
	s.registerRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.HideBanner = true
	s.HidePort = true
	s.Use(middleware.BodyLimit("64K"))
	s.Use(middleware.Recover())
	s.Use(middleware.RequestID())
	s.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/healthz" || c.Path() == "/metrics"
		},
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  false,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				fields = append(fields, "error", v.Error)
			}
			slog.Info("request", fields...)
			return nil
		},
	}))
}

func (s *Server) registerRoutes() {
	s.GET("/healthz", s.handleHealth)
	s.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	g := s.Group("/api")
	g.POST("/submissions", s.handleSubmit)
	g.GET("/units/:id", s.handleGetUnit)
	g.GET("/units/:id/wait", s.handleWait)
	g.GET("/search", s.handleSearch)
}
