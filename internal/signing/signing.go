// Package signing provides the hash and HMAC primitives used by the
// GameOn registration handshake.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// HashBody computes the SHA-256 digest of the UTF-8 bytes of body and
// returns it base64-encoded. This is the value carried in the
// gameon-sig-body header.
//
// Postcondition: Returns a non-empty base64 string; the function is pure.
func HashBody(body string) string {
	digest := sha256.Sum256([]byte(body))
	return base64.StdEncoding.EncodeToString(digest[:])
}

// Sign concatenates parts in order with no separators, computes
// HMAC-SHA256 over the resulting UTF-8 bytes keyed by the UTF-8 bytes
// of key, and returns the result base64-encoded. This is the value
// carried in the gameon-signature header.
//
// Precondition: key must be non-empty for a meaningful signature.
// Postcondition: Returns a non-empty base64 string; the function is pure.
func Sign(parts []string, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(strings.Join(parts, "")))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Known-answer vectors used by SelfCheck. The HMAC vector is test case 2
// from RFC 4231.
const (
	checkHashInput = "hello"
	checkHashWant  = "LPJNul+wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ="
	checkHmacKey   = "Jefe"
	checkHmacData  = "what do ya want for nothing?"
	checkHmacWant  = "W9zBRr9gdU5qBCQmCJV1x1oAPwidJzmDnexYuWTsOEM="
)

// SelfCheck verifies both primitives against known-answer vectors.
// A failure means the crypto primitives are unusable and the process
// must not start; callers treat a non-nil error as fatal.
//
// Postcondition: Returns nil when both primitives produce the expected
// digests.
func SelfCheck() error {
	if got := HashBody(checkHashInput); got != checkHashWant {
		return fmt.Errorf("sha256 self-check failed: got %s", got)
	}
	if got := Sign([]string{checkHmacData}, checkHmacKey); got != checkHmacWant {
		return fmt.Errorf("hmac-sha256 self-check failed: got %s", got)
	}
	return nil
}
