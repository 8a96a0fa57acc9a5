package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/francopicc/ameba/app/models"
)

func seedIdentity(t *testing.T, repos *Repositories, email string) *models.Identity {
	t.Helper()
	identity, err := models.NewIdentity("Owner", email, "")
	require.NoError(t, err)
	require.NoError(t, repos.Identity.Create(context.Background(), identity))
	return identity
}

func TestMemoryClientQuota(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	owner := seedIdentity(t, repos, "owner@example.com")

	for _, name := range []string{"One", "Two", "Three"} {
		require.NoError(t, repos.Client.CreateWithQuota(ctx, &models.Client{Name: name, OwnerID: owner.ID}, 3))
	}

	err := repos.Client.CreateWithQuota(ctx, &models.Client{Name: "Four", OwnerID: owner.ID}, 3)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	clients, err := repos.Client.ListByOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, clients, 3)
	assert.Equal(t, "One", clients[0].Name)
	assert.Equal(t, "Three", clients[2].Name)
}

func TestMemoryClientRequiresExistingOwner(t *testing.T) {
	repos := NewMemoryRepositories()
	err := repos.Client.CreateWithQuota(context.Background(), &models.Client{Name: "Ghost", OwnerID: "missing"}, 3)
	assert.True(t, IsNotFound(err))
}

func TestMemoryPatchMetadataMerges(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	identity := seedIdentity(t, repos, "meta@example.com")

	require.NoError(t, repos.Identity.PatchMetadata(ctx, identity.ID, map[string]string{"theme": "dark"}))
	require.NoError(t, repos.Identity.PatchMetadata(ctx, identity.ID, map[string]string{models.MetadataActiveClientID: "c1"}))

	got, err := repos.Identity.GetByID(ctx, identity.ID)
	require.NoError(t, err)
	assert.Equal(t, "dark", got.Metadata["theme"])
	assert.Equal(t, "c1", got.ActiveClientID())

	assert.True(t, IsNotFound(repos.Identity.PatchMetadata(ctx, "nobody", map[string]string{"a": "b"})))
}

func TestMemoryTerminalClaimIsConditional(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	now := time.Now()

	term := &models.Terminal{URLID: "abc", Status: models.TerminalStatusActive, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repos.Terminal.Create(ctx, term))

	ok, err := repos.Terminal.Claim(ctx, term.ID, "p-1", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repos.Terminal.Claim(ctx, term.ID, "p-2", now)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must lose")

	// only the holder settles, and settling ignores the deadline
	ok, err = repos.Terminal.Settle(ctx, term.ID, "p-2", models.TerminalStatusApproved)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = repos.Terminal.Settle(ctx, term.ID, "p-1", models.TerminalStatusApproved)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repos.Terminal.GetByID(ctx, term.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TerminalStatusApproved, got.Status)
	assert.True(t, got.ClaimedBy("p-1"))

	expired := &models.Terminal{URLID: "def", Status: models.TerminalStatusActive, ExpiresAt: now.Add(-time.Minute)}
	require.NoError(t, repos.Terminal.Create(ctx, expired))
	ok, err = repos.Terminal.Claim(ctx, expired.ID, "p-3", now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryTerminalRelease(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	now := time.Now()

	term := &models.Terminal{URLID: "abc", Status: models.TerminalStatusActive, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repos.Terminal.Create(ctx, term))

	ok, err := repos.Terminal.Claim(ctx, term.ID, "p-1", now)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repos.Terminal.Release(ctx, term.ID, "p-other"))
	got, err := repos.Terminal.GetByID(ctx, term.ID)
	require.NoError(t, err)
	assert.True(t, got.ClaimedBy("p-1"), "a foreign release is ignored")

	require.NoError(t, repos.Terminal.Release(ctx, term.ID, "p-1"))
	ok, err = repos.Terminal.Claim(ctx, term.ID, "p-2", now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryTerminalConcurrentClaim(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	now := time.Now()

	term := &models.Terminal{URLID: "abc", Status: models.TerminalStatusActive, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repos.Terminal.Create(ctx, term))

	const workers = 32
	var (
		wg  sync.WaitGroup
		won atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := repos.Terminal.Claim(ctx, term.ID, fmt.Sprintf("p-%d", i), now)
			assert.NoError(t, err)
			if ok {
				won.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, won.Load())
}

func TestMemoryProductScopedMutations(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()

	p := &models.Product{OwnerID: "c1", Name: "Widget", Description: "d", Amount: 9.99}
	require.NoError(t, repos.Product.Create(ctx, p))

	_, err := repos.Product.UpdateOwned(ctx, "c2", p.ID, ProductUpdate{Name: "Hijack"})
	assert.True(t, IsNotFound(err))

	n, err := repos.Product.DeleteOwned(ctx, "c2", p.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := repos.Product.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Widget", got.Name)
}
