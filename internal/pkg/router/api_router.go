package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/francopicc/ameba/app/controllers"
	"github.com/francopicc/ameba/internal/pkg/cache"
	"github.com/francopicc/ameba/internal/pkg/middleware"
)

type ApiRouter struct {
	deps      *Deps
	clients   *controllers.ClientController
	products  *controllers.ProductController
	payments  *controllers.PaymentController
	terminals *controllers.TerminalController
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	limiterCfg := limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "too_many_requests",
				"details": "rate limit exceeded",
			})
		},
	}
	if storage := cache.Storage(cache.DBLimiter); storage != nil {
		limiterCfg.Storage = storage
	}

	api := app.Group("/api", cors.New(), limiter.New(limiterCfg))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// Clients
	api.Post("/client", h.clients.HandleCreate)
	api.Get("/client", h.clients.HandleList)
	api.Post("/client/select", h.clients.HandleSelect)
	api.Get("/client/active", h.clients.HandleActive)

	// Products
	api.Post("/product", h.products.HandleCreate)
	api.Get("/product", h.products.HandleList)
	api.Put("/product/:id", h.products.HandleUpdate)
	api.Delete("/product/:id", h.products.HandleDelete)

	// Payments and terminals, callable by storefronts with a client API key
	apiKey := middleware.ClientAPIKey(h.deps.Repos.Client)
	api.Post("/payment", apiKey, h.payments.HandleCreate)
	api.Get("/payments", h.payments.HandleList)
	api.Get("/payments/stats", h.payments.HandleStats)
	api.Post("/terminal", apiKey, h.terminals.HandleCreate)
	api.Get("/terminal/:urlId", h.terminals.HandleGet)
}

func NewApiRouter(deps *Deps) *ApiRouter {
	return &ApiRouter{
		deps:      deps,
		clients:   controllers.NewClientController(deps.Binder, deps.Metrics),
		products:  controllers.NewProductController(deps.Repos, deps.Binder),
		payments:  controllers.NewPaymentController(deps.Checkout, deps.Binder, deps.Config.WebhookSecret),
		terminals: controllers.NewTerminalController(deps.Terminals),
	}
}
