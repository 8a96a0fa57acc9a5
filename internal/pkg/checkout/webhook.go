package checkout

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/francopicc/ameba/internal/pkg/apperror"
)

const SignatureHeader = "X-Ameba-Signature"

// ProviderEvent is the body of a provider result callback.
type ProviderEvent struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// VerifySignature checks the hex HMAC-SHA256 of payload under secret.
// An empty secret rejects everything.
func VerifySignature(payload []byte, signatureHeader, secret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	secret = strings.TrimSpace(secret)
	if sig == "" || secret == "" {
		return false
	}
	sig = strings.TrimPrefix(strings.ToLower(sig), "sha256=")

	expected, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}

// Sign returns the signature header value for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(strings.TrimSpace(secret)))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func ParseProviderEvent(payload []byte) (*ProviderEvent, error) {
	var ev ProviderEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, apperror.Validation("invalid payload")
	}
	ev.PaymentID = strings.TrimSpace(ev.PaymentID)
	ev.Status = strings.ToLower(strings.TrimSpace(ev.Status))
	if ev.PaymentID == "" || ev.Status == "" {
		return nil, apperror.Validation("payment_id and status are required")
	}
	return &ev, nil
}
