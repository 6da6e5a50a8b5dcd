// Package types holds the small value types shared across xrplhist:
// 256-bit hashes, raw blobs, and their formatting helpers.
package types

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"
)

// Hash256 is a 256-bit content hash, stored big-endian.
type Hash256 [32]byte

// Blob is a raw byte sequence, typically a canonical serialization.
type Blob []byte

// ZeroHash256 is the all-zero hash, used as the genesis parent.
var ZeroHash256 Hash256

// Hash256FromData computes the SHA-512Half of data.
func Hash256FromData(data []byte) Hash256 {
	h := sha512.Sum512(data)
	var out Hash256
	copy(out[:], h[:32])
	return out
}

// Hash256FromHex parses a 64-character hex string into a Hash256.
func Hash256FromHex(s string) (Hash256, error) {
	var out Hash256
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("invalid hash hex: %w", err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("invalid hash length: %d bytes", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// String returns the uppercase hex representation used on the wire.
func (h Hash256) String() string {
	return strings.ToUpper(hex.EncodeToString(h[:]))
}

// IsZero returns true if the hash is all zeroes.
func (h Hash256) IsZero() bool {
	return h == ZeroHash256
}

// Bytes returns the hash as a byte slice.
func (h Hash256) Bytes() []byte {
	return h[:]
}

// Hex returns the lowercase hex representation of the blob.
func (b Blob) Hex() string {
	return hex.EncodeToString(b)
}

// UpperHex returns the uppercase hex representation used in stored rows.
func (b Blob) UpperHex() string {
	return strings.ToUpper(hex.EncodeToString(b))
}
