package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/pointvest/pointvest/internal/apperr"
	"github.com/pointvest/pointvest/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app    *fiber.App
	deps   routes.Deps
	comps  *routes.Components
	logger *slog.Logger
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(d routes.Deps) (*Server, error) {
	comps, err := routes.Build(d)
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		AppName:      d.Cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: errorHandler(d.Logger),
	})
	routes.Setup(app, d, comps)

	return &Server{app: app, deps: d, comps: comps, logger: d.Logger}, nil
}

// App exposes the Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.deps.Cfg.Address())
}

// Shutdown gracefully stops the HTTP server and drains pending notifications.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.comps.Dispatcher.Wait()
	return err
}

// errorHandler renders every error as {"error": message}. Server-side
// failures are logged in full and answered with the bare status text.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var code int
		if fe, ok := err.(*fiber.Error); ok {
			code = fe.Code
		} else {
			code = apperr.HTTPStatus(err)
		}
		msg := err.Error()
		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.Int("status", code),
				slog.Any("error", err),
			)
			msg = utils.StatusMessage(code)
		}
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
}
