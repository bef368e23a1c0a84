package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const idPrefix = "sess_"

// newID returns a cryptographically random session ID: the "sess_" prefix
// plus 128 bits of entropy in unpadded URL-safe base64. Session IDs end up
// in URLs and file names, so the alphabet matters.
func newID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return idPrefix + base64.RawURLEncoding.EncodeToString(b)
}
