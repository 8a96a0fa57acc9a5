package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/francopicc/ameba/app/controllers"
)

type HttpRouter struct {
	deps     *Deps
	auth     *controllers.AuthController
	pages    *controllers.PageController
	payments *controllers.PaymentController
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	h.registerPublicRoutes(app)
	h.registerOpsRoutes(app)
	h.registerCSRFProtectedRoutes(app)
}

func NewHttpRouter(deps *Deps) *HttpRouter {
	return &HttpRouter{
		deps:     deps,
		auth:     controllers.NewAuthController(deps.Identities, deps.Sessions),
		pages:    controllers.NewPageController(deps.Repos, deps.Binder, deps.Terminals, deps.Checkout),
		payments: controllers.NewPaymentController(deps.Checkout, deps.Binder, deps.Config.WebhookSecret),
	}
}
