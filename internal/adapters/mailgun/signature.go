package mailgun

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureVerifier checks the HMAC signature Mailgun attaches to every
// inbound-route POST: hex(HMAC-SHA256(signing key, timestamp || token)).
type SignatureVerifier struct {
	signingKey []byte
}

// NewSignatureVerifier creates a verifier for the given webhook signing key
func NewSignatureVerifier(signingKey string) *SignatureVerifier {
	return &SignatureVerifier{signingKey: []byte(signingKey)}
}

// Verify reports whether the signature matches timestamp and token
func (v *SignatureVerifier) Verify(timestamp, token, signature string) bool {
	mac := hmac.New(sha256.New, v.signingKey)
	mac.Write([]byte(timestamp + token))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
