// Package signature verifies HMAC-SHA256 signatures of the form "sha256=<hex>"
// as sent by GitHub in the X-Hub-Signature-256 header.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

const prefix = "sha256="

var (
	ErrMissingSignature   = errors.New("missing signature")
	ErrMalformedSignature = errors.New("malformed signature")
	ErrSignatureMismatch  = errors.New("signature mismatch")
)

// Sign returns the "sha256=<hex>" signature of body under secret
func Sign(secret string, body []byte) string {
	return prefix + hex.EncodeToString(digest(secret, body))
}

// Verify checks header against the HMAC of the raw body.
// An empty secret never verifies.
func Verify(secret string, body []byte, header string) error {
	if secret == "" || header == "" {
		return ErrMissingSignature
	}

	if !strings.HasPrefix(header, prefix) {
		return ErrMalformedSignature
	}

	got, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil || len(got) != sha256.Size {
		return ErrMalformedSignature
	}

	if !hmac.Equal(got, digest(secret, body)) {
		return ErrSignatureMismatch
	}

	return nil
}

// TimingSafeCompare performs a timing-safe comparison of two strings
// This prevents timing attacks when comparing tokens
func TimingSafeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func digest(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
