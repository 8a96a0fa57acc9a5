package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/francopicc/ameba/app/models"
	"github.com/francopicc/ameba/internal/pkg/utils"
)

// UserContext represents the identity context for a single request
type UserContext struct {
	IdentityID string `json:"identity_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Avatar     string `json:"avatar"`
	IsLoggedIn bool   `json:"is_logged_in"`
}

// Set stores the resolved identity for the current request only.
// A nil identity stores the anonymous context.
func Set(c *fiber.Ctx, identity *models.Identity) {
	if identity == nil {
		c.Locals(KeyIdentity, nil)
		c.Locals(KeyUserContext, UserContext{})
		return
	}
	c.Locals(KeyIdentity, identity)
	c.Locals(KeyUserContext, UserContext{
		IdentityID: identity.ID,
		Email:      identity.Email,
		Name:       identity.Name,
		Avatar:     utils.GetGravatarURL(identity.Email, 64),
		IsLoggedIn: true,
	})
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return ctx
	}
	return UserContext{IsLoggedIn: false}
}

// Identity returns the identity resolved for this request, or nil.
func Identity(c *fiber.Ctx) *models.Identity {
	if identity, ok := c.Locals(KeyIdentity).(*models.Identity); ok {
		return identity
	}
	return nil
}

// IsLoggedIn checks if the current request carries an identity
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// GetIdentityID returns the current identity id, or "" if anonymous
func GetIdentityID(c *fiber.Ctx) string {
	return GetUserContext(c).IdentityID
}
