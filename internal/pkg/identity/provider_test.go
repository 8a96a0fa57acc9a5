package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/francopicc/ameba/app/repository"
	"github.com/francopicc/ameba/internal/pkg/apperror"
)

func newTestProvider() *Provider {
	return NewProvider(repository.NewMemoryRepositories().Identity)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider()

	created, err := p.Register(ctx, "Ana", "Ana@Example.com", "supersecret")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", created.Email)

	got, err := p.Authenticate(ctx, "ana@example.com", "supersecret")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = p.Authenticate(ctx, "ana@example.com", "wrong-password")
	assert.True(t, apperror.Is(err, apperror.KindUnauthenticated))

	_, err = p.Authenticate(ctx, "nobody@example.com", "supersecret")
	assert.True(t, apperror.Is(err, apperror.KindUnauthenticated))
}

func TestRegisterRejectsDuplicatesAndShortPasswords(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider()

	_, err := p.Register(ctx, "Ana", "ana@example.com", "short")
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = p.Register(ctx, "Ana", "not-an-email", "supersecret")
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = p.Register(ctx, "Ana", "ana@example.com", "supersecret")
	require.NoError(t, err)
	_, err = p.Register(ctx, "Ana", "ANA@example.com", "supersecret")
	assert.True(t, apperror.Is(err, apperror.KindConflict))
}

func TestLoginWithProviderLinksExistingEmail(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider()

	local, err := p.Register(ctx, "Ana", "ana@example.com", "supersecret")
	require.NoError(t, err)

	profile := OAuthProfile{Provider: "google", ProviderUserID: "g-1", Email: "ana@example.com", Name: "Ana"}
	linked, err := p.LoginWithProvider(ctx, profile)
	require.NoError(t, err)
	assert.Equal(t, local.ID, linked.ID)

	again, err := p.LoginWithProvider(ctx, profile)
	require.NoError(t, err)
	assert.Equal(t, local.ID, again.ID)

	fresh, err := p.LoginWithProvider(ctx, OAuthProfile{Provider: "google", ProviderUserID: "g-2", Email: "bo@example.com"})
	require.NoError(t, err)
	assert.NotEqual(t, local.ID, fresh.ID)
	assert.False(t, fresh.CheckPassword(""))
}

func TestUpdateMetadataMissingIdentity(t *testing.T) {
	p := newTestProvider()
	err := p.UpdateMetadata(context.Background(), "missing", map[string]string{"k": "v"})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}
