package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/francopicc/ameba/app/models"
	"github.com/francopicc/ameba/app/repository"
	"github.com/francopicc/ameba/internal/pkg/logger"
)

const KeyAPIClient = "api_client"

// ClientAPIKey authenticates requests carrying a client API key header and
// stores the client in locals. Requests without a key pass through
// unchanged; a key that matches no client is rejected.
func ClientAPIKey(clients repository.ClientRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Next()
		}

		client, err := clients.GetByAPIKeyHash(c.UserContext(), models.HashAPIKey(apiKey))
		if err != nil {
			if repository.IsNotFound(err) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "details": "invalid API key"})
			}
			logger.L().Error("api key lookup failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
		}

		c.Locals(KeyAPIClient, client)
		return c.Next()
	}
}

// APIClient returns the client authenticated by API key, or nil.
func APIClient(c *fiber.Ctx) *models.Client {
	if client, ok := c.Locals(KeyAPIClient).(*models.Client); ok {
		return client
	}
	return nil
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
