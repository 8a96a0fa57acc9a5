package controllers

import (
	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"
	"github.com/sujit-baniya/flash"
	"go.uber.org/zap"

	"github.com/francopicc/ameba/internal/pkg/constants"
	"github.com/francopicc/ameba/internal/pkg/identity"
	"github.com/francopicc/ameba/internal/pkg/logger"
	appsession "github.com/francopicc/ameba/internal/pkg/session"
)

// HandleOAuthBegin redirects to the provider's consent screen
func (ac *AuthController) HandleOAuthBegin(c *fiber.Ctx) error {
	return gothfiber.BeginAuthHandler(c)
}

// HandleOAuthCallback completes the provider flow and logs the identity in
func (ac *AuthController) HandleOAuthCallback(c *fiber.Ctx) error {
	fm := fiber.Map{
		"type":    "error",
		"message": "Login with provider failed",
	}

	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		logger.L().Warn("oauth completion failed", zap.Error(err))
		return flash.WithError(c, fm).Redirect(constants.LoginRoute, fiber.StatusSeeOther)
	}

	ident, err := ac.identities.LoginWithProvider(c.UserContext(), identity.OAuthProfile{
		Provider:       u.Provider,
		ProviderUserID: u.UserID,
		Email:          u.Email,
		Name:           firstNonEmpty(u.Name, u.NickName, u.Email),
		AccessToken:    u.AccessToken,
		RefreshToken:   u.RefreshToken,
		ExpiresAt:      u.ExpiresAt,
	})
	if err != nil {
		logger.L().Error("oauth login failed", zap.String("provider", u.Provider), zap.Error(err))
		return flash.WithError(c, fm).Redirect(constants.LoginRoute, fiber.StatusSeeOther)
	}

	if err := appsession.Login(ac.sessions, c, ident.ID, ident.Email); err != nil {
		logger.L().Error("failed to save session", zap.String("identity_id", ident.ID), zap.Error(err))
		return flash.WithError(c, fm).Redirect(constants.LoginRoute, fiber.StatusSeeOther)
	}

	return c.Redirect(constants.DashboardRoute, fiber.StatusSeeOther)
}
