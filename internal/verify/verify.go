// Package verify authenticates inbound gateway webhooks.
package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the hex-encoded HMAC-SHA-256 of the raw body.
const SignatureHeader = "X-Razorpay-Signature"

// Verifier checks webhook signatures against a pre-shared secret.
type Verifier struct {
	secret []byte
}

// New returns a Verifier for the given shared secret.
func New(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns the hex-encoded HMAC-SHA-256 of body.
func (v *Verifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the HMAC of body. The body must be the
// exact bytes received on the wire, not a re-encoding of the parsed payload.
// A mismatch, a malformed signature, or an unset secret all return false.
func (v *Verifier) Verify(body []byte, signature string) bool {
	if len(v.secret) == 0 {
		return false
	}
	claimed, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(claimed) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), claimed)
}
