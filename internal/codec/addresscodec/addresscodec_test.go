package addresscodec

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeAccountID(t *testing.T) {
	tests := []struct {
		name      string
		accountID string // hex
		address   string
	}{
		{
			name:      "genesis account",
			accountID: "b5f762798a53d543a014caf8b297cff8f2f937e8",
			address:   "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
		},
		{
			name:      "ACCOUNT_ZERO",
			accountID: "0000000000000000000000000000000000000000",
			address:   "rrrrrrrrrrrrrrrrrrrrrhoLvTp",
		},
		{
			name:      "ACCOUNT_ONE",
			accountID: "0000000000000000000000000000000000000001",
			address:   "rrrrrrrrrrrrrrrrrrrrBZbvji",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := hex.DecodeString(tc.accountID)
			require.NoError(t, err)

			addr, err := EncodeAccountID(raw)
			require.NoError(t, err)
			assert.Equal(t, tc.address, addr)

			back, err := DecodeAccountID(addr)
			require.NoError(t, err)
			assert.Equal(t, raw, back)
		})
	}
}

func TestDecodeAccountIDRejectsGarbage(t *testing.T) {
	cases := []string{
		"",
		"not an address",
		"rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTi", // corrupted checksum
		"0Hb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", // character outside alphabet
	}
	for _, addr := range cases {
		_, err := DecodeAccountID(addr)
		assert.Error(t, err, "address %q should not decode", addr)
	}
}

func TestEncodeAccountIDLengthCheck(t *testing.T) {
	_, err := EncodeAccountID(make([]byte, 19))
	assert.ErrorIs(t, err, ErrInvalidAccountID)
}

func TestIsValidAddress(t *testing.T) {
	assert.True(t, IsValidAddress("rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"))
	assert.False(t, IsValidAddress("xrp"))
}
