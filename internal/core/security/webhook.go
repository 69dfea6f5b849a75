package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/Bhagath1907/DSK/internal/core/domain"
)

// VerifyWebhookSignature checks that a webhook payload genuinely came from
// the payment gateway. The signature is HMAC-SHA256 over the EXACT raw body
// bytes (never a reparsed form), hex encoded.
//
// Returns:
//   - (true, nil) when the signature matches
//   - (false, nil) when no secret is configured: verification is SKIPPED.
//     This is a known trust gap, not a silent bypass - the caller must log it.
//   - (false, ErrBadSignature) on any mismatch
func VerifyWebhookSignature(body []byte, signature, secret string) (bool, error) {
	if secret == "" {
		return false, nil
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	// hmac.Equal, not ==: constant time comparison
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return false, domain.ErrBadSignature
	}
	return true, nil
}
