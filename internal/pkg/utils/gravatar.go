package utils

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// GetGravatarURL generates a Gravatar URL for the given email address
// Default size is 80px if not specified
func GetGravatarURL(email string, size int) string {
	if size <= 0 {
		size = 80
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Sprintf("https://www.gravatar.com/avatar/?s=%d&d=mp", size)
	}

	hash := sha256.Sum256([]byte(email))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%x?s=%d&d=identicon", hash, size)
}
