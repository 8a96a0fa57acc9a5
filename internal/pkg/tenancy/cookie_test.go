package tenancy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieSignerRoundTrip(t *testing.T) {
	s := NewCookieSigner("secret", true)

	token, err := s.Sign("identity-1", "client-1")
	require.NoError(t, err)

	clientID, err := s.Verify(token, "identity-1")
	require.NoError(t, err)
	assert.Equal(t, "client-1", clientID)

	_, err = s.Verify(token, "identity-2")
	assert.Error(t, err)

	_, err = NewCookieSigner("other", true).Verify(token, "identity-1")
	assert.Error(t, err)
}

func TestCookieSignerExpiry(t *testing.T) {
	s := NewCookieSigner("secret", false)
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }

	token, err := s.Sign("identity-1", "client-1")
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(CookieTTL + time.Minute) }
	_, err = s.Verify(token, "identity-1")
	assert.Error(t, err)
}
