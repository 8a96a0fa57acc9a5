package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/sujit-baniya/flash"
	"go.uber.org/zap"

	"github.com/francopicc/ameba/internal/pkg/apperror"
	"github.com/francopicc/ameba/internal/pkg/constants"
	"github.com/francopicc/ameba/internal/pkg/identity"
	"github.com/francopicc/ameba/internal/pkg/logger"
	appsession "github.com/francopicc/ameba/internal/pkg/session"
	"github.com/francopicc/ameba/internal/pkg/usercontext"
)

// AuthController is the local and OAuth login surface
type AuthController struct {
	identities *identity.Provider
	sessions   *session.Store
}

// NewAuthController creates a new auth controller
func NewAuthController(identities *identity.Provider, sessions *session.Store) *AuthController {
	return &AuthController{identities: identities, sessions: sessions}
}

func csrfToken(c *fiber.Ctx) string {
	if token, ok := c.Locals("csrf").(string); ok {
		return token
	}
	return ""
}

// HandleLoginPage renders the login and register forms
func (ac *AuthController) HandleLoginPage(c *fiber.Ctx) error {
	if usercontext.IsLoggedIn(c) {
		return c.Redirect(constants.DashboardRoute, fiber.StatusSeeOther)
	}
	return c.Render("auth/login", fiber.Map{
		"Title": "Login",
		"CSRF":  csrfToken(c),
		"Flash": flash.Get(c),
	}, "layouts/main")
}

func (ac *AuthController) HandleLogin(c *fiber.Ctx) error {
	fm := fiber.Map{
		"type": "error",
	}

	ident, err := ac.identities.Authenticate(c.UserContext(), c.FormValue("email"), c.FormValue("password"))
	if err != nil {
		if !apperror.Is(err, apperror.KindUnauthenticated) {
			logger.L().Error("login failed", zap.Error(err))
		}
		// do not tell which half of the credentials was wrong
		fm["message"] = "There is a problem with the login process"
		return flash.WithError(c, fm).Redirect(constants.LoginRoute, fiber.StatusSeeOther)
	}

	if err := appsession.Login(ac.sessions, c, ident.ID, ident.Email); err != nil {
		logger.L().Error("failed to save session", zap.String("identity_id", ident.ID), zap.Error(err))
		fm["message"] = "Something went wrong, please try again"
		return flash.WithError(c, fm).Redirect(constants.LoginRoute, fiber.StatusSeeOther)
	}

	return c.Redirect(constants.DashboardRoute, fiber.StatusSeeOther)
}

func (ac *AuthController) HandleRegister(c *fiber.Ctx) error {
	fm := fiber.Map{
		"type": "error",
	}

	ident, err := ac.identities.Register(c.UserContext(), c.FormValue("name"), c.FormValue("email"), c.FormValue("password"))
	if err != nil {
		var appErr *apperror.Error
		switch {
		case errors.As(err, &appErr) && appErr.Kind != apperror.KindStore:
			fm["message"] = appErr.Message
		default:
			logger.L().Error("registration failed", zap.Error(err))
			fm["message"] = "Something went wrong, please try again"
		}
		return flash.WithError(c, fm).Redirect(constants.LoginRoute, fiber.StatusSeeOther)
	}

	if err := appsession.Login(ac.sessions, c, ident.ID, ident.Email); err != nil {
		logger.L().Error("failed to save session", zap.String("identity_id", ident.ID), zap.Error(err))
		fm["message"] = "Account created, please log in"
		return flash.WithError(c, fm).Redirect(constants.LoginRoute, fiber.StatusSeeOther)
	}
	return c.Redirect(constants.DashboardRoute, fiber.StatusSeeOther)
}

func (ac *AuthController) HandleLogout(c *fiber.Ctx) error {
	if err := appsession.Logout(ac.sessions, c); err != nil {
		logger.L().Warn("logout without session", zap.Error(err))
	}
	fm := fiber.Map{
		"type":    "success",
		"message": "You have been logged out",
	}
	return flash.WithSuccess(c, fm).Redirect(constants.LoginRoute, fiber.StatusSeeOther)
}
