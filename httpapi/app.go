package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-course-auth"
	"github.com/goliatone/go-course-auth/middleware/jwtware"
	"github.com/goliatone/go-course-auth/realtime"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options wires the application
type Options struct {
	Controller    *Controller
	Authenticator jwtware.Authenticator
	Realtime      *realtime.Server
	RealtimePath  string
	Health        Pinger
	Logger        auth.Logger
}

// New builds the fiber application with every route mounted
func New(opts Options) *fiber.App {
	logger := opts.Logger
	if logger == nil {
		logger = auth.DefaultLogger()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          ErrorHandler(logger),
		DisableStartupMessage: true,
	})

	app.Use(recover.New())

	app.Get("/healthz", healthz(opts.Health))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	if opts.Realtime != nil {
		path := opts.RealtimePath
		if path == "" {
			path = "/ws"
		}
		opts.Realtime.Register(app, path)
	}

	if opts.Controller != nil {
		RegisterRoutes(app, opts.Controller, opts.Authenticator)
	}

	return app
}

func healthz(p Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if p == nil {
			return c.JSON(fiber.Map{"status": "ok"})
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		if err := p.PingContext(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
