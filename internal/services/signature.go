package services

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// SignatureService signs webhook payloads with the project's active secret so
// receivers can authenticate deliveries.
type SignatureService struct{}

func NewSignatureService() *SignatureService {
	return &SignatureService{}
}

// Sign returns the hex HMAC-SHA256 of the payload under the secret.
func (s *SignatureService) Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature in constant time.
func (s *SignatureService) Verify(secret string, payload []byte, signature string) bool {
	expected := s.Sign(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// GenerateWebhookSecret produces a new 256-bit signing secret.
func (s *SignatureService) GenerateWebhookSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
