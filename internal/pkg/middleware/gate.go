package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/francopicc/ameba/internal/pkg/constants"
	"github.com/francopicc/ameba/internal/pkg/identity"
	"github.com/francopicc/ameba/internal/pkg/metrics"
	"github.com/francopicc/ameba/internal/pkg/usercontext"
)

// Access is the gate's classification of a request.
type Access int

const (
	Public Access = iota
	ProtectedAPI
	ProtectedPage
)

func (a Access) String() string {
	switch a {
	case ProtectedAPI:
		return "protected_api"
	case ProtectedPage:
		return "protected_page"
	default:
		return "public"
	}
}

// Classify decides which access rule applies to a request. Paths compare
// case-insensitively so a router that folds case cannot route around it.
func Classify(method, path string) Access {
	path = "/" + strings.ToLower(strings.Trim(path, "/"))

	switch {
	case hasSegmentPrefix(path, "/api/terminal"):
		if method == fiber.MethodGet || method == fiber.MethodPost || method == fiber.MethodHead || method == fiber.MethodOptions {
			return Public
		}
		return ProtectedAPI
	case hasSegmentPrefix(path, "/api/payment"):
		if method == fiber.MethodPost || method == fiber.MethodOptions {
			return Public
		}
		return ProtectedAPI
	case hasSegmentPrefix(path, "/api"):
		return ProtectedAPI
	case hasSegmentPrefix(path, constants.DashboardRoute), hasSegmentPrefix(path, constants.SettingsRoute):
		return ProtectedPage
	default:
		return Public
	}
}

// hasSegmentPrefix matches prefix as whole path segments, so /api/payment
// does not match /api/payments.
func hasSegmentPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// Gate resolves the caller's identity for every request and enforces the
// access rule. The identity lives in request locals only.
func Gate(resolver identity.Resolver, m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		access := Classify(c.Method(), c.Path())

		// goth keeps its own session on /auth/*, do not touch ours there
		if strings.HasPrefix(strings.ToLower(c.Path()), constants.AuthPrefix) {
			usercontext.Set(c, nil)
			return c.Next()
		}

		ident := resolver.ResolveIdentity(c)
		usercontext.Set(c, ident)

		if access == Public || ident != nil {
			m.GateDecision(access.String(), "allowed")
			return c.Next()
		}

		m.GateDecision(access.String(), "denied")
		if access == ProtectedAPI {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"details": "login required",
			})
		}

		fm := fiber.Map{
			"type":    "error",
			"message": "Please log in to continue",
		}
		return flash.WithError(c, fm).Redirect(constants.LoginRoute, fiber.StatusSeeOther)
	}
}
