package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/sujit-baniya/flash"

	"github.com/francopicc/ameba/internal/pkg/cache"
	"github.com/francopicc/ameba/internal/pkg/constants"
)

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   h.deps.Config.SecureCookies,
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), constants.APIPrefix)
		},
	}

	// Credential forms are limited per IP
	authLimiterCfg := limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "auth:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			fm := fiber.Map{"type": "error", "message": "Too many attempts, please wait a minute"}
			return flash.WithError(c, fm).Redirect(constants.LoginRoute, fiber.StatusSeeOther)
		},
	}
	if storage := cache.Storage(cache.DBLimiter); storage != nil {
		authLimiterCfg.Storage = storage
	}
	authLimiter := limiter.New(authLimiterCfg)

	group := app.Group("", csrf.New(csrfConf))
	group.Get(constants.StartRoute, h.pages.HandleStart)
	group.Get(constants.LoginRoute, h.auth.HandleLoginPage)
	group.Post(constants.LoginRoute, authLimiter, h.auth.HandleLogin)
	group.Post("/register", authLimiter, h.auth.HandleRegister)
	group.Post("/logout", h.auth.HandleLogout)

	// Protected pages, the gate redirects anonymous callers to /login
	group.Get(constants.DashboardRoute, h.pages.HandleDashboard)
	group.Post("/dashboard/select", h.pages.HandleDashboardSelect)
	group.Post("/dashboard/clients", h.pages.HandleDashboardCreateClient)
	group.Get(constants.SettingsRoute, h.pages.HandleSettings)
}
