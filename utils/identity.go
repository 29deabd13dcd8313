package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// AuthorRef derives the public author reference from a private client identity.
// The identity doubles as the edit credential, so it is never stored or echoed in listings.
func AuthorRef(clientID string) string {
	if clientID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte("grokshare:author:" + clientID))
	return hex.EncodeToString(sum[:16])
}
