package oauth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/francopicc/ameba/internal/pkg/cache"
	"github.com/francopicc/ameba/internal/pkg/env"
)

const ProviderGoogle = "google"

// Setup registers the Google provider and the OAuth state store.
// It is safe to call multiple times; providers will just be re-registered.
func Setup() {
	goth.UseProviders(
		google.New(
			env.GetEnv("GOOGLE_KEY", ""),
			env.GetEnv("GOOGLE_SECRET", ""),
			CallbackURL(ProviderGoogle),
			"email", "profile",
		),
	)

	// OAuth state shares the Redis connection with app sessions, separate DB
	cfg := session.Config{
		KeyLookup:      "cookie:" + gothic.SessionName,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   !env.IsDev(),
		Expiration:     30 * time.Minute,
	}
	if storage := cache.Storage(cache.DBOAuth); storage != nil {
		cfg.Storage = storage
	}
	gothfiber.SessionStore = session.New(cfg)
}

// CallbackURL builds the public callback address for provider.
func CallbackURL(provider string) string {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}
	return base + "/auth/" + provider + "/callback"
}
