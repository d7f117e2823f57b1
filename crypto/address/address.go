// Package address implements the 20-byte 0x-prefixed account addresses used
// by the redemption ledger. Addresses are derived from ML-DSA-44 public keys
// with Blake2b-256, Ethereum-style (last 20 bytes of the digest).
package address

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	mldsa "github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/fxamacker/cbor/v2"

	"github.com/vaultis-labs/go-vaultis/crypto/hash"
)

const (
	// Address format constants
	Prefix     = "0x"
	Length     = 42 // "0x" + 40 hex characters
	ByteLength = 20
)

// Address represents a 20-byte account address.
type Address [ByteLength]byte

// New derives an Address from an ML-DSA-44 public key.
func New(pubKey *mldsa.PublicKey) (*Address, error) {
	if pubKey == nil {
		return nil, fmt.Errorf("public key cannot be nil")
	}

	pubKeyBytes := pubKey.Bytes()
	if len(pubKeyBytes) == 0 {
		return nil, fmt.Errorf("public key bytes cannot be empty")
	}

	digest := hash.NewHash(pubKeyBytes)

	var addr Address
	copy(addr[:], digest[len(digest)-ByteLength:])
	return &addr, nil
}

// NullAddress returns the all-zero address.
func NullAddress() *Address {
	return &Address{}
}

// FromString parses a 0x-prefixed hex string into an Address.
func FromString(addr string) (*Address, error) {
	if err := Validate(addr); err != nil {
		return nil, fmt.Errorf("invalid address format: %v", err)
	}

	raw, err := hex.DecodeString(strings.ToLower(addr[2:]))
	if err != nil {
		return nil, fmt.Errorf("invalid address hex: %v", err)
	}

	var address Address
	copy(address[:], raw)
	return &address, nil
}

// FromBytes creates an Address from raw bytes.
func FromBytes(raw []byte) (*Address, error) {
	if len(raw) != ByteLength {
		return nil, fmt.Errorf("address bytes must be exactly %d bytes, got %d", ByteLength, len(raw))
	}

	var address Address
	copy(address[:], raw)
	return &address, nil
}

// Validate checks that a string is a well-formed 0x address.
func Validate(addr string) error {
	if len(addr) != Length {
		return fmt.Errorf("address must be exactly %d characters long, got %d", Length, len(addr))
	}

	if !strings.HasPrefix(addr, Prefix) {
		return fmt.Errorf("address must start with '%s', got '%s'", Prefix, addr[:2])
	}

	if _, err := hex.DecodeString(strings.ToLower(addr[2:])); err != nil {
		return fmt.Errorf("address contains invalid hex: %v", err)
	}

	return nil
}

// IsValid reports whether addr is a well-formed 0x address.
func IsValid(addr string) bool {
	return Validate(addr) == nil
}

// Normalize validates addr and returns its canonical lowercase form.
func Normalize(addr string) (string, error) {
	if err := Validate(addr); err != nil {
		return "", err
	}
	return strings.ToLower(addr), nil
}

// GenerateAddress derives the 0x string form directly from a public key.
func GenerateAddress(pubKey *mldsa.PublicKey) (string, error) {
	addr, err := New(pubKey)
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}

// Bytes returns the raw 20-byte address.
func (a *Address) Bytes() []byte {
	if a == nil {
		return nil
	}
	return a[:]
}

// String returns the 0x-prefixed lowercase hex representation.
func (a *Address) String() string {
	if a == nil {
		return Prefix + strings.Repeat("0", 2*ByteLength)
	}
	return fmt.Sprintf("%s%x", Prefix, a[:])
}

// Hex returns the hex string without the 0x prefix.
func (a *Address) Hex() string {
	if a == nil {
		return strings.Repeat("0", 2*ByteLength)
	}
	return fmt.Sprintf("%x", a[:])
}

// IsZero reports whether the address is all zeros.
func (a *Address) IsZero() bool {
	if a == nil {
		return true
	}
	for _, b := range a {
		if b != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether two addresses are identical.
func (a *Address) Equal(other *Address) bool {
	if a == nil && other == nil {
		return true
	}
	if a == nil || other == nil {
		return false
	}
	return bytes.Equal(a[:], other[:])
}

// Set overwrites the address with the given bytes.
func (a *Address) Set(raw []byte) error {
	if len(raw) != ByteLength {
		return fmt.Errorf("address bytes must be exactly %d bytes, got %d", ByteLength, len(raw))
	}
	copy(a[:], raw)
	return nil
}

// Copy returns an independent copy of the address.
func (a *Address) Copy() *Address {
	if a == nil {
		return nil
	}
	dup := *a
	return &dup
}

// Marshal encodes the Address using CBOR.
func (a *Address) Marshal() ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("cannot marshal nil address")
	}
	return cbor.Marshal(a[:])
}

// Unmarshal decodes CBOR data into the Address.
func (a *Address) Unmarshal(data []byte) error {
	if a == nil {
		return fmt.Errorf("cannot unmarshal into nil address")
	}

	var slice []byte
	if err := cbor.Unmarshal(data, &slice); err != nil {
		return fmt.Errorf("failed to unmarshal CBOR data: %v", err)
	}

	if len(slice) != ByteLength {
		return fmt.Errorf("unmarshaled data has incorrect length: expected %d, got %d", ByteLength, len(slice))
	}

	copy(a[:], slice)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a *Address) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`"%s"`, a.String())), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Address) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("invalid JSON data for address")
	}

	addr, err := FromString(string(data[1 : len(data)-1]))
	if err != nil {
		return fmt.Errorf("failed to parse address from JSON: %v", err)
	}

	copy(a[:], addr[:])
	return nil
}
