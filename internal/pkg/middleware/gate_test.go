package middleware

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/francopicc/ameba/app/models"
	"github.com/francopicc/ameba/app/repository"
	"github.com/francopicc/ameba/internal/pkg/identity"
	"github.com/francopicc/ameba/internal/pkg/usercontext"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   Access
	}{
		{fiber.MethodPost, "/api/terminal", Public},
		{fiber.MethodGet, "/api/terminal/abc123", Public},
		{fiber.MethodDelete, "/api/terminal/abc123", ProtectedAPI},
		{fiber.MethodPost, "/api/payment", Public},
		{fiber.MethodGet, "/api/payment", ProtectedAPI},
		{fiber.MethodGet, "/api/payments", ProtectedAPI},
		{fiber.MethodGet, "/api/payments/stats", ProtectedAPI},
		{fiber.MethodPost, "/api/client", ProtectedAPI},
		{fiber.MethodPut, "/api/product/1", ProtectedAPI},
		{fiber.MethodGet, "/api/terminals", ProtectedAPI},
		{fiber.MethodGet, "/dashboard", ProtectedPage},
		{fiber.MethodGet, "/dashboard/products", ProtectedPage},
		{fiber.MethodGet, "/settings", ProtectedPage},
		{fiber.MethodGet, "/dashboards", Public},
		{fiber.MethodGet, "/", Public},
		{fiber.MethodGet, "/login", Public},
		{fiber.MethodGet, "/terminal/abc123", Public},
		{fiber.MethodPost, "/webhooks/payment", Public},
		{fiber.MethodGet, "/auth/google/callback", Public},
		{fiber.MethodGet, "/API/client", ProtectedAPI},
		{fiber.MethodGet, "/Api/Payments", ProtectedAPI},
		{fiber.MethodDelete, "/API/Terminal/abc123", ProtectedAPI},
		{fiber.MethodGet, "/Dashboard", ProtectedPage},
		{fiber.MethodGet, "/SETTINGS/", ProtectedPage},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.method, tt.path))
		})
	}
}

// headerResolver treats the X-Test-Identity header as the session.
func headerResolver(known map[string]*models.Identity) identity.Resolver {
	return identity.ResolverFunc(func(c *fiber.Ctx) *models.Identity {
		return known[c.Get("X-Test-Identity")]
	})
}

func newGateApp(resolver identity.Resolver) *fiber.App {
	app := fiber.New()
	app.Use(Gate(resolver, nil))
	whoami := func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"identity_id": usercontext.GetIdentityID(c)})
	}
	app.Get("/api/client", whoami)
	app.Get("/api/terminal/:urlId", whoami)
	app.Get("/dashboard", whoami)
	return app
}

func TestGateProtectedAPIWithoutIdentity(t *testing.T) {
	app := newGateApp(headerResolver(nil))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/client", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "unauthorized", body["error"])
	assert.NotEmpty(t, body["details"])
}

func TestGateProtectedPageRedirects(t *testing.T) {
	app := newGateApp(headerResolver(nil))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/dashboard", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestGatePublicPassesAnonymous(t *testing.T) {
	app := newGateApp(headerResolver(nil))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/terminal/abc", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestGateMixedCasePaths(t *testing.T) {
	// fiber's default router folds case, so these reach the handlers
	app := newGateApp(headerResolver(nil))

	for _, path := range []string{"/API/client", "/Api/Client", "/api/CLIENT/"} {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, path, nil))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, path)
	}

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/Dashboard", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestGateDoesNotCacheAuthentication(t *testing.T) {
	ana := &models.Identity{ID: "ana", Email: "ana@example.com"}
	app := newGateApp(headerResolver(map[string]*models.Identity{"ana": ana}))

	req := httptest.NewRequest(fiber.MethodGet, "/api/client", nil)
	req.Header.Set("X-Test-Identity", "ana")
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// a different caller right after must not inherit the previous identity
	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/api/client", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/dashboard", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
}

func TestClientAPIKey(t *testing.T) {
	ctx := context.Background()
	repos := repository.NewMemoryRepositories()
	owner, err := models.NewIdentity("Owner", "owner@example.com", "")
	require.NoError(t, err)
	require.NoError(t, repos.Identity.Create(ctx, owner))

	client := &models.Client{Name: "Acme", OwnerID: owner.ID}
	key, err := client.IssueAPIKey()
	require.NoError(t, err)
	require.NoError(t, repos.Client.CreateWithQuota(ctx, client, models.MaxClientsPerOwner))

	app := fiber.New()
	app.Use(ClientAPIKey(repos.Client))
	app.Post("/api/payment", func(c *fiber.Ctx) error {
		if client := APIClient(c); client != nil {
			return c.SendString(client.ID)
		}
		return c.SendString("anonymous")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/api/payment", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req := httptest.NewRequest(fiber.MethodPost, "/api/payment", nil)
	req.Header.Set("Authorization", "Bearer "+key)
	resp, err = app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(fiber.MethodPost, "/api/payment", nil)
	req.Header.Set("X-API-Key", "not-a-key")
	resp, err = app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
