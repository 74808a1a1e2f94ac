package server

import (
	"errors"
	"strings"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/config"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/handlers"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/metrics"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/middleware"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// Registrar mounts one resource kind's routes.
type Registrar interface {
	Register(r fiber.Router, required, optional fiber.Handler)
}

type Routes struct {
	Resources []Registrar
	Media     *handlers.Media
	Verifier  middleware.TokenVerifier
	Metrics   *metrics.Metrics
}

// New initializes the Fiber application with config, middlewares, and routes.
func New(cfg *config.Config, rt Routes, logger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		BodyLimit:             cfg.App.BodyLimitMB << 20,
		DisableStartupMessage: cfg.App.Env != "development",
		ErrorHandler:          errorHandler(logger),
	})

	// Global Middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowOrigins: strings.Join(cfg.App.CORSOrigins, ",")}))
	app.Use(middleware.RequestLogger(logger))

	app.Get("/healthz", handlers.Health)
	if rt.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(rt.Metrics.Handler()))
	}

	api := app.Group("/api/v1")
	required := middleware.JWTAuth(rt.Verifier)
	optional := middleware.OptionalJWTAuth(rt.Verifier)
	for _, r := range rt.Resources {
		r.Register(api, required, optional)
	}
	if rt.Media != nil {
		api.Get("/media/*", rt.Media.Redirect)
	}

	return app
}

func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := "internal server error"
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code, msg = fe.Code, fe.Message
		} else {
			logger.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		}
		return utils.JSONError(c, code, msg)
	}
}
