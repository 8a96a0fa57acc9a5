package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{Validation("bad"), fiber.StatusBadRequest},
		{Unauthenticated("who"), fiber.StatusUnauthorized},
		{Forbidden("nope"), fiber.StatusForbidden},
		{NotFound("gone"), fiber.StatusNotFound},
		{Conflict("state"), fiber.StatusConflict},
		{Store("db", errors.New("boom")), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Status(), string(tt.err.Kind))
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("select client: %w", Forbidden("client not owned"))
	assert.Equal(t, KindAuthorization, KindOf(err))
	assert.True(t, Is(err, KindAuthorization))
	assert.False(t, Is(nil, KindAuthorization))

	assert.Equal(t, KindStore, KindOf(errors.New("plain")))
}

func TestStoreUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Store("failed to load client", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}
