package router

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"

	"github.com/francopicc/ameba/internal/pkg/cache"
	"github.com/francopicc/ameba/internal/pkg/database"
)

func (h HttpRouter) registerOpsRoutes(app *fiber.App) {
	app.Get("/healthz", handleHealth)

	if h.deps.Config.MetricsPass == "" {
		return
	}
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			h.deps.Config.MetricsUser: h.deps.Config.MetricsPass,
		},
	}), h.deps.Metrics.Handler())
}

func handleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := fiber.Map{"database": "ok", "cache": "disabled"}
	code := fiber.StatusOK

	if db := database.GetDB(); db != nil {
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			status["database"] = "unavailable"
			code = fiber.StatusServiceUnavailable
		}
	} else if !database.UsesMemory() {
		status["database"] = "unavailable"
		code = fiber.StatusServiceUnavailable
	} else {
		status["database"] = "memory"
	}

	if cache.Enabled() {
		status["cache"] = "ok"
		if err := cache.Ping(ctx); err != nil {
			status["cache"] = "unavailable"
		}
	}
	return c.Status(code).JSON(status)
}
