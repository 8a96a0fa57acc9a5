package router

import (
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Social OAuth
	app.Get("/auth/:provider", h.auth.HandleOAuthBegin)
	app.Get("/auth/:provider/callback", h.auth.HandleOAuthCallback)

	// Customer facing payment links
	app.Get("/terminal/:urlId", h.pages.HandleTerminalPage)
	app.Get("/terminal/:urlId/:outcome", h.pages.HandleTerminalResult)

	// Payment provider webhooks (no CSRF, signature-verified in controller)
	app.Post("/webhooks/payment", h.payments.HandleProviderWebhook)
}
