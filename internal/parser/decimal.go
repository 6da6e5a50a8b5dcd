package parser

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// All parser arithmetic runs on exact rationals so issued-currency values
// never pass through a float. Native XRP is converted from drops to display
// units here and nowhere else.

var dropsPerXRP = big.NewRat(1_000_000, 1)

var errBadAmount = errors.New("malformed amount")

// amountValue interprets a decoded amount field: a drops string for XRP or
// a {value, currency, issuer} object for issued currencies. XRP is returned
// in display units.
func amountValue(v any) (Asset, *big.Rat, error) {
	switch amt := v.(type) {
	case string:
		drops, ok := new(big.Rat).SetString(amt)
		if !ok {
			return Asset{}, nil, fmt.Errorf("%w: drops %q", errBadAmount, amt)
		}
		return Asset{Currency: "XRP"}, drops.Quo(drops, dropsPerXRP), nil
	case map[string]any:
		value, _ := amt["value"].(string)
		currency, _ := amt["currency"].(string)
		issuer, _ := amt["issuer"].(string)
		if value == "" || currency == "" {
			return Asset{}, nil, fmt.Errorf("%w: %v", errBadAmount, amt)
		}
		r, ok := new(big.Rat).SetString(value)
		if !ok {
			return Asset{}, nil, fmt.Errorf("%w: value %q", errBadAmount, value)
		}
		return Asset{Currency: currency, Issuer: issuer}, r, nil
	default:
		return Asset{}, nil, fmt.Errorf("%w: %T", errBadAmount, v)
	}
}

// dropsValue parses a plain drops string into display units.
func dropsValue(drops string) (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(drops)
	if !ok {
		return nil, fmt.Errorf("%w: drops %q", errBadAmount, drops)
	}
	return r.Quo(r, dropsPerXRP), nil
}

// ratString renders a rational as a plain decimal with trailing zeros
// stripped. Values that do not terminate in decimal form are rendered with
// enough digits for any downstream aggregation (rates, mostly).
const ratDigits = 16

func ratString(r *big.Rat) string {
	if r.Sign() == 0 {
		return "0"
	}
	s := r.FloatString(ratDigits)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}
