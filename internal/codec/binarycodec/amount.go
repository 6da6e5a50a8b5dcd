package binarycodec

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/LeJamon/xrplhist/internal/codec/addresscodec"
)

// Issued amount mantissa/exponent bounds, matching rippled's STAmount.
const (
	minIOUExponent = -96
	maxIOUExponent = 80
	minIOUMantissa = 1_000_000_000_000_000
	maxIOUMantissa = 9_999_999_999_999_999

	maxDrops = 100_000_000_000_000_000
)

const (
	amountNotXRPBit   = uint64(0x8000000000000000)
	amountPositiveBit = uint64(0x4000000000000000)
)

var (
	isoCurrencyPattern = regexp.MustCompile(`^[A-Za-z0-9?!@#$%^&*<>(){}\[\]|]{3}$`)
	hexCurrencyPattern = regexp.MustCompile(`^[0-9A-Fa-f]{40}$`)
	dropsPattern       = regexp.MustCompile(`^-?[0-9]+$`)
)

// encodeCurrency renders a currency code to its 160-bit form. A three
// character ISO code occupies bytes 12-14; a 40 character hex string is used
// verbatim for non-standard codes.
func encodeCurrency(code string) ([]byte, error) {
	out := make([]byte, 20)
	switch {
	case code == "XRP":
		return out, nil
	case isoCurrencyPattern.MatchString(code):
		copy(out[12:15], code)
		return out, nil
	case hexCurrencyPattern.MatchString(code):
		raw, err := hex.DecodeString(code)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrBadCurrencyCode, code)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrBadCurrencyCode, code)
	}
}

// decodeCurrency is the inverse of encodeCurrency.
func decodeCurrency(raw []byte) (string, error) {
	if len(raw) != 20 {
		return "", fmt.Errorf("%w: %d byte currency", ErrBadCurrencyCode, len(raw))
	}
	allZero := true
	for _, b := range raw {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return "XRP", nil
	}
	// Standard form: only bytes 12-14 populated.
	standard := true
	for i, b := range raw {
		if (i < 12 || i > 14) && b != 0 {
			standard = false
			break
		}
	}
	if standard {
		code := string(raw[12:15])
		if isoCurrencyPattern.MatchString(code) {
			return code, nil
		}
	}
	return strings.ToUpper(hex.EncodeToString(raw)), nil
}

// encodeAmount serializes an amount value. Native XRP comes in as a decimal
// drops string; issued amounts as {"value","currency","issuer"}.
func encodeAmount(value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return encodeNativeAmount(v)
	case map[string]any:
		return encodeIssuedAmount(v)
	default:
		return nil, fmt.Errorf("%w: amount must be a drops string or issued amount object", ErrBadValue)
	}
}

func encodeNativeAmount(drops string) ([]byte, error) {
	if !dropsPattern.MatchString(drops) {
		return nil, fmt.Errorf("%w: invalid drops value %q", ErrBadValue, drops)
	}
	negative := strings.HasPrefix(drops, "-")
	digits := strings.TrimPrefix(drops, "-")

	n, ok := new(big.Int).SetString(digits, 10)
	if !ok || n.Cmp(big.NewInt(maxDrops)) > 0 {
		return nil, fmt.Errorf("%w: drops out of range %q", ErrBadValue, drops)
	}

	bits := n.Uint64()
	if !negative {
		bits |= amountPositiveBit
	}
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, bits)
	return out, nil
}

func encodeIssuedAmount(obj map[string]any) ([]byte, error) {
	valueStr, _ := obj["value"].(string)
	currency, _ := obj["currency"].(string)
	issuer, _ := obj["issuer"].(string)
	if valueStr == "" || currency == "" || issuer == "" {
		return nil, fmt.Errorf("%w: issued amount requires value, currency and issuer", ErrBadValue)
	}

	mantissa, exponent, negative, err := parseDecimal(valueStr)
	if err != nil {
		return nil, err
	}

	var bits uint64
	if mantissa == 0 {
		// Canonical zero: only the not-XRP bit set.
		bits = amountNotXRPBit
	} else {
		bits = amountNotXRPBit
		if !negative {
			bits |= amountPositiveBit
		}
		bits |= uint64(exponent+97) << 54
		bits |= mantissa
	}

	out := make([]byte, 0, 48)
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], bits)
	out = append(out, prefix[:]...)

	curRaw, err := encodeCurrency(currency)
	if err != nil {
		return nil, err
	}
	out = append(out, curRaw...)

	issuerRaw, err := addresscodec.DecodeAccountID(issuer)
	if err != nil {
		return nil, fmt.Errorf("%w: bad issuer %q: %v", ErrBadValue, issuer, err)
	}
	out = append(out, issuerRaw...)
	return out, nil
}

// parseDecimal converts a decimal string into a normalized
// (mantissa, exponent) pair with mantissa in [1e15, 1e16).
func parseDecimal(value string) (mantissa uint64, exponent int, negative bool, err error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return 0, 0, false, fmt.Errorf("%w: empty amount value", ErrBadValue)
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	} else {
		s = strings.TrimPrefix(s, "+")
	}

	// Scientific notation is accepted since rippled emits it for extremes.
	var expPart int
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		if _, err := fmt.Sscanf(s[i+1:], "%d", &expPart); err != nil {
			return 0, 0, false, fmt.Errorf("%w: bad exponent in %q", ErrBadValue, value)
		}
		s = s[:i]
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	digits := intPart + fracPart
	if digits == "" || !dropsPattern.MatchString(digits) {
		return 0, 0, false, fmt.Errorf("%w: invalid decimal %q", ErrBadValue, value)
	}

	m, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return 0, 0, false, fmt.Errorf("%w: invalid decimal %q", ErrBadValue, value)
	}
	exponent = expPart - len(fracPart)

	if m.Sign() == 0 {
		return 0, 0, negative, nil
	}

	ten := big.NewInt(10)
	lo := big.NewInt(minIOUMantissa)
	hi := big.NewInt(maxIOUMantissa)

	for m.Cmp(lo) < 0 {
		m.Mul(m, ten)
		exponent--
	}
	for m.Cmp(hi) > 0 {
		rem := new(big.Int)
		m.DivMod(m, ten, rem)
		if rem.Sign() != 0 {
			return 0, 0, false, fmt.Errorf("%w: %q loses precision", ErrBadValue, value)
		}
		exponent++
	}

	if exponent < minIOUExponent || exponent > maxIOUExponent {
		return 0, 0, false, fmt.Errorf("%w: exponent out of range for %q", ErrBadValue, value)
	}
	return m.Uint64(), exponent, negative, nil
}

// decodeAmount reads an amount field and returns either a drops string or an
// issued amount object.
func decodeAmount(p *binaryParser) (any, error) {
	first, err := p.peek()
	if err != nil {
		return nil, err
	}

	if first&0x80 == 0 {
		// Native: one 64-bit word.
		raw, err := p.readBytes(8)
		if err != nil {
			return nil, err
		}
		bits := binary.BigEndian.Uint64(raw)
		drops := bits &^ (amountNotXRPBit | amountPositiveBit)
		if bits&amountPositiveBit == 0 && drops != 0 {
			return fmt.Sprintf("-%d", drops), nil
		}
		return fmt.Sprintf("%d", drops), nil
	}

	raw, err := p.readBytes(48)
	if err != nil {
		return nil, err
	}
	bits := binary.BigEndian.Uint64(raw[:8])

	currency, err := decodeCurrency(raw[8:28])
	if err != nil {
		return nil, err
	}
	issuer, err := addresscodec.EncodeAccountID(raw[28:48])
	if err != nil {
		return nil, err
	}

	mantissa := bits & ((1 << 54) - 1)
	valueStr := "0"
	if mantissa != 0 {
		exponent := int((bits>>54)&0xFF) - 97
		valueStr = formatDecimal(mantissa, exponent, bits&amountPositiveBit == 0)
	}

	return map[string]any{
		"value":    valueStr,
		"currency": currency,
		"issuer":   issuer,
	}, nil
}

// formatDecimal renders mantissa*10^exponent without precision loss and
// without a float round trip.
func formatDecimal(mantissa uint64, exponent int, negative bool) string {
	digits := fmt.Sprintf("%d", mantissa)

	var s string
	switch {
	case exponent >= 0:
		s = digits + strings.Repeat("0", exponent)
	case -exponent < len(digits):
		point := len(digits) + exponent
		s = strings.TrimRight(digits[:point]+"."+digits[point:], "0")
		s = strings.TrimRight(s, ".")
	default:
		s = "0." + strings.Repeat("0", -exponent-len(digits)) + digits
		s = strings.TrimRight(s, "0")
	}

	if negative && s != "0" {
		s = "-" + s
	}
	return s
}
