// Package addresscodec implements the XRPL base58check encoding used for
// account addresses. The alphabet and checksum scheme match rippled.
package addresscodec

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"math/big"
)

// rippleAlphabet is the base58 dictionary used by the XRPL, starting with 'r'
// so that account addresses always begin with that letter.
const rippleAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

// AccountID payloads are prefixed with a type byte before encoding.
const accountIDPrefix = 0x00

// AccountIDLength is the length in bytes of a raw account identifier.
const AccountIDLength = 20

var (
	// ErrInvalidAddress is returned when an address fails base58 or
	// checksum validation.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidAccountID is returned when a raw account ID has the wrong length.
	ErrInvalidAccountID = errors.New("account ID must be 20 bytes")
)

var alphabetIndex [256]int8

func init() {
	for i := range alphabetIndex {
		alphabetIndex[i] = -1
	}
	for i := 0; i < len(rippleAlphabet); i++ {
		alphabetIndex[rippleAlphabet[i]] = int8(i)
	}
}

// EncodeAccountID encodes a raw 20-byte account ID as an r-address.
func EncodeAccountID(accountID []byte) (string, error) {
	if len(accountID) != AccountIDLength {
		return "", ErrInvalidAccountID
	}
	payload := make([]byte, 0, 1+AccountIDLength+4)
	payload = append(payload, accountIDPrefix)
	payload = append(payload, accountID...)
	payload = append(payload, checksum(payload)...)
	return encodeBase58(payload), nil
}

// DecodeAccountID decodes an r-address back to its raw 20-byte account ID.
func DecodeAccountID(address string) ([]byte, error) {
	decoded, err := decodeBase58(address)
	if err != nil {
		return nil, err
	}
	if len(decoded) != 1+AccountIDLength+4 || decoded[0] != accountIDPrefix {
		return nil, ErrInvalidAddress
	}
	payload := decoded[:1+AccountIDLength]
	if !bytes.Equal(checksum(payload), decoded[1+AccountIDLength:]) {
		return nil, ErrInvalidAddress
	}
	out := make([]byte, AccountIDLength)
	copy(out, payload[1:])
	return out, nil
}

// IsValidAddress reports whether address decodes to a well-formed account ID.
func IsValidAddress(address string) bool {
	_, err := DecodeAccountID(address)
	return err == nil
}

// checksum is the first four bytes of a double SHA-256.
func checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:4]
}

func encodeBase58(data []byte) string {
	zeros := 0
	for zeros < len(data) && data[zeros] == 0 {
		zeros++
	}

	n := new(big.Int).SetBytes(data)
	radix := big.NewInt(58)
	mod := new(big.Int)

	var out []byte
	for n.Sign() > 0 {
		n.DivMod(n, radix, mod)
		out = append(out, rippleAlphabet[mod.Int64()])
	}
	for i := 0; i < zeros; i++ {
		out = append(out, rippleAlphabet[0])
	}

	// Digits were produced least-significant first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

func decodeBase58(s string) ([]byte, error) {
	if s == "" {
		return nil, ErrInvalidAddress
	}

	n := new(big.Int)
	radix := big.NewInt(58)
	for i := 0; i < len(s); i++ {
		idx := alphabetIndex[s[i]]
		if idx < 0 {
			return nil, ErrInvalidAddress
		}
		n.Mul(n, radix)
		n.Add(n, big.NewInt(int64(idx)))
	}

	zeros := 0
	for zeros < len(s) && s[zeros] == rippleAlphabet[0] {
		zeros++
	}

	raw := n.Bytes()
	out := make([]byte, zeros+len(raw))
	copy(out[zeros:], raw)
	return out, nil
}
