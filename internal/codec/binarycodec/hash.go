package binarycodec

import (
	"crypto/sha512"
	"encoding/binary"

	"github.com/LeJamon/xrplhist/internal/types"
)

// Hash prefixes from rippled's HashPrefix.h. Each is four ASCII bytes with a
// zero terminator, mixed into the digest ahead of the payload so hashes from
// different namespaces can never collide.
const (
	// HashPrefixTransactionID: "TXN" - transaction ID hashing
	HashPrefixTransactionID uint32 = 0x54584E00

	// HashPrefixTxNode: "SND" - transaction plus metadata tree leaf
	HashPrefixTxNode uint32 = 0x534E4400

	// HashPrefixInnerNode: "MIN" - tree inner node
	HashPrefixInnerNode uint32 = 0x4D494E00

	// HashPrefixLedgerMaster: "LWR" - ledger header
	HashPrefixLedgerMaster uint32 = 0x4C575200
)

// Sha512Half returns the first 32 bytes of the SHA-512 of msg.
func Sha512Half(msg []byte) types.Hash256 {
	h := sha512.Sum512(msg)
	var out types.Hash256
	copy(out[:], h[:32])
	return out
}

// PrefixedHash computes Sha512Half(prefix || parts...).
func PrefixedHash(prefix uint32, parts ...[]byte) types.Hash256 {
	h := sha512.New()
	var p [4]byte
	binary.BigEndian.PutUint32(p[:], prefix)
	h.Write(p[:])
	for _, part := range parts {
		h.Write(part)
	}
	sum := h.Sum(nil)
	var out types.Hash256
	copy(out[:], sum[:32])
	return out
}

// TransactionID computes the content hash of a serialized transaction.
func TransactionID(txBlob []byte) types.Hash256 {
	return PrefixedHash(HashPrefixTransactionID, txBlob)
}
