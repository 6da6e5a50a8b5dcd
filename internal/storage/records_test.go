package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/xrplhist/internal/ledger"
	"github.com/LeJamon/xrplhist/internal/parser"
	"github.com/LeJamon/xrplhist/internal/types"
)

func TestLedgerRowRoundTrip(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	l := &ledger.Ledger{
		Index:       1234,
		Hash:        types.Hash256FromData([]byte("ledger")),
		ParentHash:  types.Hash256FromData([]byte("parent")),
		TxHash:      types.Hash256FromData([]byte("txset")),
		AccountHash: types.Hash256FromData([]byte("state")),
		CloseTime:   ledger.UTCToRippleTime(time.Date(2015, 3, 1, 12, 0, 0, 0, time.UTC)),
		TotalCoins:  "99999999999999999",
	}

	in := NewLedgerRow(l)
	require.NoError(t, gw.PutRows(ctx, TableLedgers, []Row{in.ToRow()}))

	row, err := gw.GetRow(ctx, TableLedgers, LedgerKey(1234))
	require.NoError(t, err)
	out, err := LedgerRowFromRow(row)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLedgerKeysSortNumerically(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	for _, idx := range []uint32{2, 100, 99, 10, 1} {
		l := &ledger.Ledger{Index: idx, Hash: types.Hash256FromData([]byte{byte(idx)})}
		require.NoError(t, gw.PutRows(ctx, TableLedgers, []Row{NewLedgerRow(l).ToRow()}))
	}

	rows, err := gw.Scan(ctx, TableLedgers, ScanOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 5)

	var got []uint32
	for _, row := range rows {
		got = append(got, colUint32(row.Columns, "index"))
	}
	assert.Equal(t, []uint32{1, 2, 10, 99, 100}, got)
}

func TestTransactionRowRoundTripAndReparse(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	l := &ledger.Ledger{
		Index:     5000,
		CloseTime: ledger.UTCToRippleTime(time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC)),
	}
	tx := &ledger.Transaction{
		TxIndex: 3,
		Tx: map[string]any{
			"TransactionType": "Payment",
			"Account":         "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
			"Destination":     "rrrrrrrrrrrrrrrrrrrrBZbvji",
			"Amount":          "1000000",
			"Fee":             "12",
			"Sequence":        uint32(9),
			"SigningPubKey":   "03AB40A0490F9B7ED8DF29D246BF2D6269820A0EE7742ACDD457BEA7C7D0931EDB",
		},
		Meta: map[string]any{
			"TransactionResult": "tesSUCCESS",
			"TransactionIndex":  uint32(3),
			"AffectedNodes":     []any{},
		},
	}
	require.NoError(t, tx.Prepare(l))

	in := NewTransactionRow(tx)
	require.NoError(t, gw.PutRows(ctx, TableTransactions, []Row{in.ToRow()}))

	row, err := gw.GetRow(ctx, TableTransactions, TransactionKey(tx.Hash))
	require.NoError(t, err)
	out, err := TransactionRowFromRow(row)
	require.NoError(t, err)
	assert.Equal(t, in.Hash, out.Hash)
	assert.Equal(t, in.Raw, out.Raw)

	// The stored canonical bytes rebuild the full structured transaction.
	rebuilt, err := out.ToTransaction()
	require.NoError(t, err)
	assert.Equal(t, tx.Hash, rebuilt.Hash)
	assert.Equal(t, "Payment", rebuilt.Type)
	assert.Equal(t, tx.Account, rebuilt.Account)
	assert.Equal(t, "tesSUCCESS", rebuilt.Result)
	assert.Equal(t, "1000000", rebuilt.Tx["Amount"])
}

func TestEventRowKeys(t *testing.T) {
	at := time.Date(2015, 3, 1, 12, 0, 0, 0, time.UTC)

	ex := parser.Exchange{
		Base:        parser.Asset{Currency: "USD", Issuer: "rIssuer"},
		Counter:     parser.Asset{Currency: "XRP"},
		LedgerIndex: 1234,
		TxIndex:     7,
		NodeIndex:   2,
		ExecutedAt:  at,
	}
	assert.Equal(t,
		"usd.rissuer|xrp|20150301120000|0000001234|00007|00002",
		ExchangeRowKey(ex))

	bc := parser.BalanceChange{
		Account:     "rAccount",
		Asset:       parser.Asset{Currency: "XRP"},
		NodeIndex:   parser.FeeNodeIndex,
		LedgerIndex: 1234,
		TxIndex:     7,
		ExecutedAt:  at,
	}
	assert.Equal(t,
		"rAccount|20150301120000|0000001234|00007|fee",
		BalanceChangeRow(bc).Key)

	aa := parser.AffectedAccount{
		Account:     "rAccount",
		LedgerIndex: 1234,
		TxIndex:     7,
		ExecutedAt:  at,
	}
	assert.Equal(t,
		"rAccount|20150301120000|0000001234|00007",
		AffectedAccountRow(aa).Key)
}

func TestAccountScanRange(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	base := time.Date(2015, 3, 1, 0, 0, 0, 0, time.UTC)
	var rows []Row
	for day := 1; day <= 5; day++ {
		rows = append(rows, AffectedAccountRow(parser.AffectedAccount{
			Account:     "rAccount",
			TxType:      "Payment",
			LedgerIndex: uint32(day),
			ExecutedAt:  base.AddDate(0, 0, day-1),
		}))
	}
	rows = append(rows, AffectedAccountRow(parser.AffectedAccount{
		Account:    "rOther",
		ExecutedAt: base,
	}))
	require.NoError(t, gw.PutRows(ctx, TableAffectedAccounts, rows))

	start, stop := AccountScanRange("rAccount", base.AddDate(0, 0, 1), base.AddDate(0, 0, 3))
	got, err := gw.Scan(ctx, TableAffectedAccounts, ScanOptions{Start: start, Stop: stop})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, uint32(2), colUint32(got[0].Columns, "ledger_index"))
	assert.Equal(t, uint32(4), colUint32(got[2].Columns, "ledger_index"))

	start, stop = AccountScanRange("rAccount", time.Time{}, time.Time{})
	got, err = gw.Scan(ctx, TableAffectedAccounts, ScanOptions{Start: start, Stop: stop})
	require.NoError(t, err)
	assert.Len(t, got, 5)
}
