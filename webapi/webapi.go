// Package webapi is the HTTP surface of the rate service: one route tree
// per source, plus instance info and Prometheus metrics.
package webapi

import (
	"strings"
	"time"

	"github.com/amirasaad/fxrate/pkg/app"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const banner = "200 OK\n\n/info - Instance Info\n"

// Info is the body of GET /info.
type Info struct {
	Version string `json:"version"`
	Env     string `json:"env"`
	Sources any    `json:"sources"`
}

// SetupApp Initialize Fiber with custom configuration
func SetupApp(a *app.App) *fiber.App {
	mgr := a.Deps.Manager

	fiberApp := fiber.New(fiber.Config{
		AppName: "fxrate",
		// Handlers set Date to the rate's update time.
		DisableDefaultDate: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})

	// Configure rate limiting middleware
	// Uses X-Forwarded-For header when behind a proxy
	fiberApp.Use(limiter.New(limiter.Config{
		Max:        a.Config.RateLimit.MaxRequests,
		Expiration: a.Config.RateLimit.Window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
				first, _, _ := strings.Cut(forwardedFor, ",")
				return strings.TrimSpace(first)
			}
			if realIP := c.Get("X-Real-IP"); realIP != "" {
				return realIP
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return ErrorResponseJSON(
				c,
				fiber.StatusTooManyRequests,
				"Too Many Requests",
				"rate limit exceeded",
			)
		},
	}))
	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New())
	fiberApp.Use(func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderDate, httpDate(time.Now()))
		c.Set("X-Powered-By", "fxrate/"+a.Config.Version)
		return c.Next()
	})

	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(banner)
	})

	fiberApp.Get("/info", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "no-store")
		return SuccessResponseJSON(c, fiber.StatusOK, "Instance info", Info{
			Version: a.Config.Version,
			Env:     a.Config.Env,
			Sources: mgr.ListSources(),
		})
	})

	fiberApp.Get("/metrics", adaptor.HTTPHandler(
		promhttp.HandlerFor(a.Deps.Gatherer, promhttp.HandlerOpts{}),
	))

	Routes(fiberApp, mgr)
	return fiberApp
}
