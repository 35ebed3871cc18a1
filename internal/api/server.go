package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigell/sahara/internal/matching"
	"github.com/spigell/sahara/internal/metrics"
	"github.com/spigell/sahara/internal/session"
)

const (
	ServiceName = "Sahara Benefit Matching API"

	headerSessionID = "X-Session-Id"
	headerRequestID = "X-Request-Id"
)

type Options struct {
	// Sessions enables the /sessions routes and auto-recording of matches.
	Sessions *session.Recorder
	Metrics  *metrics.Metrics
	// Gatherer backs /metrics. The route is not registered when nil.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
	Now      func() time.Time
}

type Server struct {
	app          *fiber.App
	orchestrator *matching.Orchestrator
	sessions     *session.Recorder
	metrics      *metrics.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

func New(orch *matching.Orchestrator, opts Options) (*Server, error) {
	if orch == nil {
		return nil, errors.New("orchestrator is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		orchestrator: orch,
		sessions:     opts.Sessions,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		now:          opts.Now,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               ServiceName,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	s.app.Use(requestid.New(requestid.Config{
		Header:    headerRequestID,
		Generator: uuid.NewString,
	}))
	s.app.Use(s.logRequests)
	s.app.Use(recover.New())
	s.app.Use(cors.New())

	s.app.Post("/match-benefits", s.matchBenefits)
	s.app.Get("/match-benefits", s.health)
	s.app.Get("/match-benefits/stats", s.stats)

	if s.sessions != nil {
		sessions := s.app.Group("/sessions")
		sessions.Post("/", s.saveSession)
		sessions.Get("/", s.recentSessions)
		sessions.Get("/:id", s.getSession)
		sessions.Post("/:id/interactions", s.trackInteraction)
		sessions.Get("/:id/interactions", s.listInteractions)
	}

	if opts.Gatherer != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	return s, nil
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
