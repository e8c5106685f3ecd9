package chunk

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// ContentHash is a Blake2b-256 digest of chunk content, used for dedup.
type ContentHash string

// HashContent computes the content hash used for dedup (§3, invariant 2).
func HashContent(content string) ContentHash {
	sum := blake2b.Sum256([]byte(content))
	return ContentHash(hex.EncodeToString(sum[:]))
}
