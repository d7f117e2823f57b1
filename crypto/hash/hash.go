// Package hash wraps the Blake2b-256 digest used everywhere an address or
// state root is derived.
package hash

import (
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Size is the digest length in bytes.
const Size = 32

// NewHash returns the Blake2b-256 digest of data.
func NewHash(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

// HexString returns the lowercase hex encoding of the Blake2b-256 digest of data.
func HexString(data []byte) string {
	return fmt.Sprintf("%x", NewHash(data))
}
