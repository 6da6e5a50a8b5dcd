package parser

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"math/big"
	"time"

	"github.com/LeJamon/xrplhist/internal/ledger"
)

// Demurrage (interest-bearing) currencies use the type 0x01 non-standard
// 160-bit currency layout: one type byte, a three character code, a uint32
// reference date in ripple time, and an IEEE-754 e-folding time in seconds.
// Their nominal ledger values must be adjusted to the transaction's
// execution time before before/after differencing, otherwise the interest
// component shows up as a phantom trade.
type demurrageInfo struct {
	ISOCode     string
	ReferenceAt uint32  // ripple epoch seconds
	EFolding    float64 // seconds for the value to change by a factor of e
}

// demurrageFromCurrency decodes the demurrage parameters from a 40
// character hex currency code, or returns false for ordinary currencies.
func demurrageFromCurrency(currency string) (demurrageInfo, bool) {
	if len(currency) != 40 {
		return demurrageInfo{}, false
	}
	raw, err := hex.DecodeString(currency)
	if err != nil || raw[0] != 0x01 {
		return demurrageInfo{}, false
	}

	info := demurrageInfo{
		ISOCode:     string(raw[1:4]),
		ReferenceAt: binary.BigEndian.Uint32(raw[4:8]),
		EFolding:    math.Float64frombits(binary.BigEndian.Uint64(raw[8:16])),
	}
	if info.EFolding == 0 || math.IsNaN(info.EFolding) || math.IsInf(info.EFolding, 0) {
		return demurrageInfo{}, false
	}
	return info, true
}

// adjustForInterest scales value to its real worth at the execution time.
// For a demurraging currency the ledger stores the face value at the
// reference date; the holder's claim decays by e^-1 every EFolding seconds
// after it. Ordinary currencies pass through unchanged.
func adjustForInterest(asset Asset, value *big.Rat, executedAt time.Time) *big.Rat {
	info, ok := demurrageFromCurrency(asset.Currency)
	if !ok {
		return value
	}

	elapsed := float64(ledger.UTCToRippleTime(executedAt)) - float64(info.ReferenceAt)
	factor := math.Exp(-elapsed / info.EFolding)
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return value
	}

	scale := new(big.Rat).SetFloat64(factor)
	if scale == nil {
		return value
	}
	return new(big.Rat).Mul(value, scale)
}
