package shared

import (
	"crypto/rand"
	"encoding/base64"
)

// SessionIDLength is the fixed length of generated session identifiers.
const SessionIDLength = 16

// NewSessionID returns a cryptographically random, URL-safe session
// identifier of SessionIDLength characters.
func NewSessionID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)[:SessionIDLength]
}
