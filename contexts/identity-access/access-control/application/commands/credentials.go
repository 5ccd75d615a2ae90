package commands

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashCredential stores the registration secret in a non-reversible form.
// The core treats credentials as opaque; session handling lives with the
// authentication collaborator.
func hashCredential(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
