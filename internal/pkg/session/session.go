package session

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/francopicc/ameba/internal/pkg/cache"
	"github.com/francopicc/ameba/internal/pkg/env"
)

// Keys stored in the server-side session.
const (
	KeyIdentityID = "identity_id"
	KeyEmail      = "email"
)

const CookieName = "ameba_session"

// NewSessionStore builds the identity session store. Sessions live in Redis
// database 1 when Redis is configured.
func NewSessionStore() *session.Store {
	cfg := session.Config{
		CookieHTTPOnly: true,
		CookieSecure:   !env.IsDev(),
		CookieSameSite: "Lax",
		Expiration:     7 * 24 * time.Hour,
		KeyLookup:      "cookie:" + CookieName,
	}
	if storage := cache.Storage(cache.DBSessions); storage != nil {
		cfg.Storage = storage
	}
	return session.New(cfg)
}

// Login binds the identity to the caller's session and rotates the session id.
func Login(store *session.Store, c *fiber.Ctx, identityID, email string) error {
	sess, err := store.Get(c)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if err := sess.Regenerate(); err != nil {
		return fmt.Errorf("failed to rotate session: %w", err)
	}
	sess.Set(KeyIdentityID, identityID)
	sess.Set(KeyEmail, email)
	return sess.Save()
}

// Logout destroys the caller's session.
func Logout(store *session.Store, c *fiber.Ctx) error {
	sess, err := store.Get(c)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	return sess.Destroy()
}

// IdentityID returns the identity bound to the caller's session, or "".
func IdentityID(store *session.Store, c *fiber.Ctx) string {
	sess, err := store.Get(c)
	if err != nil {
		return ""
	}
	if v, ok := sess.Get(KeyIdentityID).(string); ok {
		return v
	}
	return ""
}
