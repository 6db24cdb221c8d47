package poll

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// Fingerprint is a 64-bit hash of a raw response body. Equal bodies always
// hash equal; a collision only delays a visual update by one change.
type Fingerprint uint64

// FingerprintOf hashes body with xxh3.
func FingerprintOf(body []byte) Fingerprint {
	return Fingerprint(xxh3.Hash(body))
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}
