package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/francopicc/ameba/internal/pkg/middleware"
)

// Router registers a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App, deps *Deps) {
	// Request metrics and the gate run before every route. The gate resolves
	// the identity per request and never caches it.
	app.Use(deps.Metrics.Middleware())
	app.Use(middleware.Gate(deps.Resolver, deps.Metrics))

	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
