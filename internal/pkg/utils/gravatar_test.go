package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetGravatarURL(t *testing.T) {
	a := GetGravatarURL("  Owner@Example.com ", 0)
	b := GetGravatarURL("owner@example.com", 0)
	assert.Equal(t, a, b)
	assert.True(t, strings.HasSuffix(a, "?s=80&d=identicon"))

	assert.Contains(t, GetGravatarURL("owner@example.com", 32), "s=32")
	assert.NotEqual(t, b, GetGravatarURL("other@example.com", 0))
	assert.Equal(t, "https://www.gravatar.com/avatar/?s=80&d=mp", GetGravatarURL("", 0))
}
