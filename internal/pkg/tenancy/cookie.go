package tenancy

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CookieName = "active_client_id"
	CookieTTL  = 7 * 24 * time.Hour
)

// SelectionWriter persists the advisory copy of a client selection.
type SelectionWriter interface {
	WriteSelection(identityID, clientID string) error
}

type selectionClaims struct {
	ClientID string `json:"cid"`
	jwt.RegisteredClaims
}

// CookieSigner signs and verifies the active client cookie. The cookie is
// bound to the identity that set it.
type CookieSigner struct {
	secret []byte
	secure bool
	now    func() time.Time
}

func NewCookieSigner(secret string, secure bool) *CookieSigner {
	return &CookieSigner{secret: []byte(secret), secure: secure, now: time.Now}
}

func (s *CookieSigner) Sign(identityID, clientID string) (string, error) {
	now := s.now()
	claims := selectionClaims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(CookieTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify returns the client id carried by token when it was signed for identityID.
func (s *CookieSigner) Verify(token, identityID string) (string, error) {
	claims := &selectionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", err
	}
	if !parsed.Valid || claims.Subject != identityID || claims.ClientID == "" {
		return "", errors.New("selection cookie does not match identity")
	}
	return claims.ClientID, nil
}

// Writer returns a SelectionWriter that sets the cookie on c.
func (s *CookieSigner) Writer(c *fiber.Ctx) SelectionWriter {
	return &cookieWriter{c: c, signer: s}
}

type cookieWriter struct {
	c      *fiber.Ctx
	signer *CookieSigner
}

func (w *cookieWriter) WriteSelection(identityID, clientID string) error {
	token, err := w.signer.Sign(identityID, clientID)
	if err != nil {
		return err
	}
	w.c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  w.signer.now().Add(CookieTTL),
		HTTPOnly: true,
		Secure:   w.signer.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}
