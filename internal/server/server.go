// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the chat and consultation pipelines over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/evidence-engine/internal/consultation"
	"github.com/pdiddy/evidence-engine/internal/respond"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// DefaultBodyLimit caps request bodies when the config leaves it empty.
const DefaultBodyLimit = "10M"

// rateLimitWindow is the period ServerConfig.RateLimit is counted over.
const rateLimitWindow = time.Minute

// Chatter answers chat messages. *respond.Orchestrator implements it.
type Chatter interface {
	Respond(ctx context.Context, req respond.Request) (respond.Response, error)
	Forget(ctx context.Context, id string) (bool, error)
}

// Analyzer produces consultation reports and SOAP notes.
// *consultation.Analyzer implements it.
type Analyzer interface {
	Analyze(ctx context.Context, req consultation.Request) (consultation.Report, error)
	FormatSOAP(ctx context.Context, req consultation.Request) (consultation.Note, error)
}

// Deps are the handlers' collaborators. Metrics and Logger may be nil.
type Deps struct {
	Chat     Chatter
	Analyzer Analyzer
	Metrics  http.Handler
	Logger   *zap.Logger
}

// Server is the echo application.
type Server struct {
	e      *echo.Echo
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
}

// New builds the routes and middleware.
func New(cfg types.ServerConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{e: echo.New(), deps: deps, logger: logger, now: time.Now}

	e := s.e
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	limit := cfg.BodyLimit
	if limit == "" {
		limit = DefaultBodyLimit
	}
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(limit))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Info("request", fields...)
			return nil
		},
	}))

	e.GET("/health", s.health)
	api := e.Group("/api")
	if cfg.RateLimit > 0 {
		api.Use(rateLimiter(cfg.RateLimit))
	}
	api.POST("/chat", s.chat)
	api.DELETE("/chat/:conversationId", s.forget)
	api.POST("/analyze-consultation", s.analyzeConsultation)
	api.POST("/format-soap", s.formatSOAP)
	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics))
	}
	return s
}

// rateLimiter admits perMinute requests per client IP with an equal burst.
func rateLimiter(perMinute int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / rateLimitWindow.Seconds()),
		Burst:     perMinute,
		ExpiresIn: 3 * rateLimitWindow,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		DenyHandler: func(_ echo.Context, _ string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "Muitas requisições. Tente novamente em breve.").SetInternal(err)
		},
	})
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler { return s.e }

// Start listens on addr until Shutdown. It returns nil on a clean shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("listening", zap.String("addr", addr))
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

// handleError renders every unhandled error as JSON.
func (s *Server) handleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := "Erro interno do servidor"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}
	req := c.Request()
	s.logger.Warn("request failed",
		zap.Int("status", code),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("remote", c.RealIP()),
		zap.Error(err))
	if !c.Response().Committed {
		_ = c.JSON(code, errorBody{Success: false, Error: msg})
	}
}
