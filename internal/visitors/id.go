package visitors

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewVisitorID creates a long-lived visitor identifier for the identity
// cookie. The value is a hash of the current time and random bytes, so it
// carries no information about the visitor.
func NewVisitorID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	data := fmt.Sprintf("%d.%s", time.Now().UTC().UnixNano(), hex.EncodeToString(buf))

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// NewSessionID creates the identifier for a single visit session.
func NewSessionID() string {
	return uuid.NewString()
}
