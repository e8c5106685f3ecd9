// Package chunk defines the Chunk entity and its identity primitives.
package chunk

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// ID is a 128-bit time-ordered identifier in the spirit of ULID: a 48-bit
// millisecond timestamp, a 16-bit sequence counter, then 64 bits of
// randomness. Two IDs generated in the same process in the same
// millisecond still sort in generation order because the counter, which
// precedes the random tail, increments for each of them.
type ID [16]byte

var (
	idMu      sync.Mutex
	lastMilli int64
	lastSeq   uint16
)

// NewID generates a new monotonically increasing ID.
func NewID() ID {
	idMu.Lock()
	defer idMu.Unlock()

	now := time.Now().UnixMilli()
	if now <= lastMilli {
		now = lastMilli
		lastSeq++
	} else {
		lastMilli = now
		lastSeq = 0
	}

	var id ID
	binary.BigEndian.PutUint16(id[0:2], uint16(now>>32))
	binary.BigEndian.PutUint32(id[2:6], uint32(now))
	binary.BigEndian.PutUint16(id[6:8], lastSeq)

	if _, err := rand.Read(id[8:]); err != nil {
		// crypto/rand failing means the system entropy pool is broken;
		// fall back to a time-derived filler rather than panicking.
		binary.BigEndian.PutUint64(id[8:], uint64(time.Now().UnixNano()))
	}

	return id
}

// Time returns the millisecond timestamp the ID was generated at.
func (id ID) Time() time.Time {
	ms := int64(binary.BigEndian.Uint16(id[0:2]))<<32 | int64(binary.BigEndian.Uint32(id[2:6]))
	return time.UnixMilli(ms)
}

// String renders the ID as lowercase hex.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Compare orders two IDs; newer (greater time, or greater tie-break) sorts
// after older. It implements the "newer chunk_id first" tiebreak from the
// spec by returning >0 when id is newer than other.
func (id ID) Compare(other ID) int {
	for i := range id {
		if id[i] != other[i] {
			if id[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// ParseID parses a hex-encoded ID previously produced by String.
func ParseID(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("chunk: parse id %q: %w", s, err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("chunk: id %q has wrong length %d", s, len(b))
	}
	copy(id[:], b)
	return id, nil
}
