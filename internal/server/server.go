// Package server exposes the pipeline as a local JSON API on fiber.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"captionclip/internal/pipeline"
)

const shutdownTimeout = 10 * time.Second

// Health describes the resolved toolchain for /healthz.
type Health struct {
	FFmpeg  string
	FFprobe string
}

// Options configure New.
type Options struct {
	Logger zerolog.Logger
	Health Health
	// BaseContext parents every job started by a request. Cancelling it
	// aborts in-flight jobs. Defaults to context.Background.
	BaseContext context.Context
}

type Server struct {
	app    *fiber.App
	logger zerolog.Logger
}

// New builds the fiber app and its routes.
func New(coord *pipeline.Coordinator, opts Options) *Server {
	base := opts.BaseContext
	if base == nil {
		base = context.Background()
	}
	log := opts.Logger.With().Str("component", "server").Logger()

	app := fiber.New(fiber.Config{
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${status} - ${latency} ${method} ${path}\n",
		Output: log,
	}))
	app.Use(func(c *fiber.Ctx) error {
		c.SetUserContext(base)
		return c.Next()
	})

	h := NewHandler(coord, validator.New(), opts.Health)
	app.Get("/healthz", h.Health)

	api := app.Group("/api")
	api.Post("/acquire", h.Acquire)
	api.Post("/render", h.Render)
	api.Post("/export", h.Export)
	api.Get("/jobs", h.Jobs)
	api.Get("/jobs/:id", h.Job)
	api.Post("/jobs/:id/cancel", h.Cancel)

	return &Server{app: app, logger: log}
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Listen(ctx context.Context, addr string) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("shutting down")
			if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
				s.logger.Warn().Err(err).Msg("shutdown")
			}
		case <-done:
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("listening")
	if err := s.app.Listen(addr); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
