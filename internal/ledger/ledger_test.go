package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	binarycodec "github.com/LeJamon/xrplhist/internal/codec/binarycodec"
	"github.com/LeJamon/xrplhist/internal/types"
)

const (
	senderAddr   = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	receiverAddr = "rrrrrrrrrrrrrrrrrrrrBZbvji"
)

func testTransaction(t *testing.T, txIndex uint32, result string) *Transaction {
	t.Helper()
	return &Transaction{
		Tx: map[string]any{
			"TransactionType": "Payment",
			"Account":         senderAddr,
			"Destination":     receiverAddr,
			"Amount":          "1000000",
			"Fee":             "12",
			"Sequence":        uint32(100 + txIndex),
			"SigningPubKey":   "03AB40A0490F9B7ED8DF29D246BF2D6269820A0EE7742ACDD457BEA7C7D0931EDB",
		},
		Meta: map[string]any{
			"TransactionIndex":  txIndex,
			"TransactionResult": result,
			"AffectedNodes":     []any{},
		},
	}
}

func testLedger() *Ledger {
	return &Ledger{
		Index:     100,
		CloseTime: 700000000,
	}
}

func TestPrepareComputesHashAndContext(t *testing.T) {
	l := testLedger()
	tx := testTransaction(t, 2, "tesSUCCESS")

	require.NoError(t, tx.Prepare(l))

	assert.False(t, tx.Hash.IsZero())
	assert.NotEmpty(t, tx.Raw)
	assert.NotEmpty(t, tx.MetaRaw)
	assert.Equal(t, uint32(100), tx.LedgerIndex)
	assert.Equal(t, uint32(2), tx.TxIndex)
	assert.Equal(t, "Payment", tx.Type)
	assert.Equal(t, senderAddr, tx.Account)
	assert.Equal(t, "12", tx.Fee)
	assert.Equal(t, "tesSUCCESS", tx.Result)
	assert.Equal(t, l.CloseTimeUTC(), tx.ExecutedAt)

	// Preparing the same content twice yields the same hash.
	again := testTransaction(t, 2, "tesSUCCESS")
	require.NoError(t, again.Prepare(l))
	assert.Equal(t, tx.Hash, again.Hash)
}

func TestPrepareSkipsServerSynthesizedMetaKeys(t *testing.T) {
	l := testLedger()
	tx := testTransaction(t, 0, "tesSUCCESS")
	tx.Meta["delivered_amount"] = "1000000"

	require.NoError(t, tx.Prepare(l))

	// The synthesized key stays readable on the map but never reaches the
	// canonical blob.
	assert.Equal(t, "1000000", tx.Meta["delivered_amount"])
	decoded, err := binarycodec.Decode(tx.MetaRaw)
	require.NoError(t, err)
	assert.NotContains(t, decoded, "delivered_amount")

	// Canonical bytes and hash match a transaction without the key.
	plain := testTransaction(t, 0, "tesSUCCESS")
	require.NoError(t, plain.Prepare(l))
	assert.Equal(t, plain.MetaRaw, tx.MetaRaw)
	assert.Equal(t, plain.Hash, tx.Hash)
}

func TestPrepareRequiresMetadata(t *testing.T) {
	tx := testTransaction(t, 0, "tesSUCCESS")
	tx.Meta = nil
	assert.ErrorIs(t, tx.Prepare(testLedger()), ErrNoMetadata)
}

func TestClaimedFee(t *testing.T) {
	tests := []struct {
		result  string
		claimed bool
	}{
		{"tesSUCCESS", true},
		{"tecUNFUNDED_OFFER", true},
		{"tecPATH_DRY", true},
		{"temBAD_FEE", false},
		{"terRETRY", false},
		{"", false},
	}
	for _, tc := range tests {
		tx := &Transaction{Result: tc.result}
		assert.Equal(t, tc.claimed, tx.ClaimedFee(), tc.result)
	}
}

func TestRippleTimeConversion(t *testing.T) {
	// The ripple epoch itself.
	assert.Equal(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), RippleTimeToUTC(0))

	now := time.Date(2023, 6, 15, 12, 30, 0, 0, time.UTC)
	assert.Equal(t, now, RippleTimeToUTC(UTCToRippleTime(now)))
}

func TestTxSetHashDeterministicAndOrderAware(t *testing.T) {
	l := testLedger()
	a := testTransaction(t, 0, "tesSUCCESS")
	b := testTransaction(t, 1, "tesSUCCESS")
	require.NoError(t, a.Prepare(l))
	require.NoError(t, b.Prepare(l))

	h1, err := TxSetHash([]*Transaction{a, b})
	require.NoError(t, err)
	// Input slice order must not matter: tx_index drives the tree.
	h2, err := TxSetHash([]*Transaction{b, a})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	// A different tx set hashes differently.
	c := testTransaction(t, 1, "tecPATH_DRY")
	require.NoError(t, c.Prepare(l))
	h3, err := TxSetHash([]*Transaction{a, c})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestTxSetHashEmpty(t *testing.T) {
	h, err := TxSetHash(nil)
	require.NoError(t, err)
	assert.Equal(t, types.ZeroHash256, h)
}

func TestTxSetHashRejectsUnprepared(t *testing.T) {
	_, err := TxSetHash([]*Transaction{testTransaction(t, 0, "tesSUCCESS")})
	assert.Error(t, err)
}

func TestTxSetHashOddCount(t *testing.T) {
	l := testLedger()
	var txs []*Transaction
	for i := uint32(0); i < 3; i++ {
		tx := testTransaction(t, i, "tesSUCCESS")
		require.NoError(t, tx.Prepare(l))
		txs = append(txs, tx)
	}
	h, err := TxSetHash(txs)
	require.NoError(t, err)
	assert.False(t, h.IsZero())
}
