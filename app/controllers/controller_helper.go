package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/francopicc/ameba/app/models"
	"github.com/francopicc/ameba/internal/pkg/apperror"
	"github.com/francopicc/ameba/internal/pkg/logger"
	"github.com/francopicc/ameba/internal/pkg/tenancy"
	"github.com/francopicc/ameba/internal/pkg/usercontext"
)

// respondError writes err as the JSON error body. Store failures are logged
// and answered with an opaque message.
func respondError(c *fiber.Ctx, err error) error {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		appErr = apperror.Store("unexpected error", err)
	}

	if appErr.Kind == apperror.KindStore {
		logger.L().Error(appErr.Message,
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(appErr.Err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": string(apperror.KindStore),
		})
	}

	body := fiber.Map{
		"error":   string(appErr.Kind),
		"message": appErr.Message,
	}
	if appErr.Details != "" {
		body["details"] = appErr.Details
	}
	return c.Status(appErr.Status()).JSON(body)
}

func badJSON(c *fiber.Ctx) error {
	return respondError(c, apperror.Validation("invalid JSON body"))
}

// activeClient resolves the client the logged-in identity is acting for.
func activeClient(c *fiber.Ctx, binder *tenancy.Binder) (*models.Client, error) {
	identityID := usercontext.GetIdentityID(c)
	if identityID == "" {
		return nil, apperror.Unauthenticated("login required")
	}
	return binder.GetActiveClient(c.UserContext(), identityID)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
