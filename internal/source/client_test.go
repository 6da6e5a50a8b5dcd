package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/xrplhist/internal/types"
)

var upgrader = websocket.Upgrader{}

const (
	testLedgerHash = "F8A87917A30B646F976E04E84E8DD4E2F926DECE10E347E5F3B3BC0E2E1CC4A4"
	testParentHash = "0000000000000000000000000000000000000000000000000000000000000001"
	testTxSetHash  = "0000000000000000000000000000000000000000000000000000000000000002"
	testStateHash  = "0000000000000000000000000000000000000000000000000000000000000003"
)

// handlerFunc answers one decoded request and returns the responses to
// send back.
type handlerFunc func(req map[string]any) []map[string]any

// newTestServer runs a scripted websocket endpoint.
func newTestServer(t *testing.T, handle handlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req map[string]any
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			for _, resp := range handle(req) {
				if err := conn.WriteJSON(resp); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.URL = "ws" + strings.TrimPrefix(srv.URL, "http")
	cfg.InitialBackoff = 10 * time.Millisecond
	cfg.MaxBackoff = 50 * time.Millisecond
	cfg.NotClosedRetry = 10 * time.Millisecond
	cfg.RequestTimeout = 5 * time.Second

	client := NewClient(cfg, nil)
	t.Cleanup(func() { client.Close() })
	return client
}

func ledgerResponse(req map[string]any, closed bool, txs []map[string]any) map[string]any {
	if txs == nil {
		txs = []map[string]any{}
	}
	return map[string]any{
		"id":     req["id"],
		"status": "success",
		"type":   "response",
		"result": map[string]any{
			"validated": closed,
			"ledger": map[string]any{
				"closed":           closed,
				"ledger_index":     "100",
				"ledger_hash":      testLedgerHash,
				"parent_hash":      testParentHash,
				"transaction_hash": testTxSetHash,
				"account_hash":     testStateHash,
				"close_time":       478920000,
				"total_coins":      "99999999999999999",
				"transactions":     txs,
			},
		},
	}
}

func TestFetchLedgerByIndex(t *testing.T) {
	client := newTestServer(t, func(req map[string]any) []map[string]any {
		assert.Equal(t, "ledger", req["command"])
		assert.Equal(t, float64(100), req["ledger_index"])
		assert.Equal(t, true, req["transactions"])
		assert.Equal(t, true, req["expand"])
		return []map[string]any{ledgerResponse(req, true, []map[string]any{{
			"TransactionType": "Payment",
			"Account":         "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
			"Destination":     "rrrrrrrrrrrrrrrrrrrrBZbvji",
			"Amount":          "1000000",
			"Fee":             "12",
			"Sequence":        9,
			"hash":            "ABCD",
			"metaData": map[string]any{
				"TransactionResult": "tesSUCCESS",
				"TransactionIndex":  0,
				"AffectedNodes":     []any{},
			},
		}})}
	})

	l, err := client.FetchLedger(context.Background(), ByIndex(100), FetchOptions{
		IncludeTransactions: true,
		Expand:              true,
	})
	require.NoError(t, err)

	assert.Equal(t, uint32(100), l.Index)
	assert.Equal(t, testLedgerHash, l.Hash.String())
	assert.Equal(t, uint32(478920000), l.CloseTime)
	require.Len(t, l.Transactions, 1)

	tx := l.Transactions[0]
	assert.Equal(t, "Payment", tx.Tx["TransactionType"])
	// Server decorations are stripped and numbers narrowed.
	assert.NotContains(t, tx.Tx, "hash")
	assert.NotContains(t, tx.Tx, "metaData")
	assert.Equal(t, uint32(9), tx.Tx["Sequence"])
	assert.Equal(t, uint32(0), tx.Meta["TransactionIndex"])
	assert.Equal(t, "tesSUCCESS", tx.Meta["TransactionResult"])
}

func TestFetchLedgerValidatedSymbol(t *testing.T) {
	client := newTestServer(t, func(req map[string]any) []map[string]any {
		assert.Equal(t, "validated", req["ledger_index"])
		return []map[string]any{ledgerResponse(req, true, nil)}
	})

	l, err := client.FetchLedger(context.Background(), Validated(), FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, uint32(100), l.Index)
}

func TestFetchLedgerByHash(t *testing.T) {
	hash, err := types.Hash256FromHex(testLedgerHash)
	require.NoError(t, err)

	client := newTestServer(t, func(req map[string]any) []map[string]any {
		assert.Equal(t, testLedgerHash, req["ledger_hash"])
		return []map[string]any{ledgerResponse(req, true, nil)}
	})

	l, err := client.FetchLedger(context.Background(), ByHash(hash), FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, hash, l.Hash)
}

func TestFetchLedgerNotFound(t *testing.T) {
	client := newTestServer(t, func(req map[string]any) []map[string]any {
		return []map[string]any{{
			"id":     req["id"],
			"status": "error",
			"error":  "lgrNotFound",
		}}
	})

	_, err := client.FetchLedger(context.Background(), ByIndex(999), FetchOptions{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchLedgerRetriesUntilClosed(t *testing.T) {
	attempts := 0
	client := newTestServer(t, func(req map[string]any) []map[string]any {
		attempts++
		return []map[string]any{ledgerResponse(req, attempts >= 3, nil)}
	})

	l, err := client.FetchLedger(context.Background(), ByIndex(100), FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, uint32(100), l.Index)
	assert.Equal(t, 3, attempts)
}

func TestSubscribeClosedLedgers(t *testing.T) {
	client := newTestServer(t, func(req map[string]any) []map[string]any {
		if req["command"] != "subscribe" {
			return nil
		}
		return []map[string]any{
			{"id": req["id"], "status": "success", "result": map[string]any{}},
			{
				"type":         "ledgerClosed",
				"ledger_index": 100,
				"ledger_hash":  testLedgerHash,
				"ledger_time":  478920000,
				"txn_count":    7,
			},
			{
				"type":         "ledgerClosed",
				"ledger_index": 101,
				"ledger_hash":  testParentHash,
				"ledger_time":  478920010,
				"txn_count":    2,
			},
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	notes, err := client.SubscribeClosedLedgers(ctx)
	require.NoError(t, err)

	first := <-notes
	assert.Equal(t, uint32(100), first.Index)
	assert.Equal(t, testLedgerHash, first.Hash.String())
	assert.Equal(t, 7, first.TxCount)

	second := <-notes
	assert.Equal(t, uint32(101), second.Index)

	cancel()
	select {
	case _, open := <-notes:
		assert.False(t, open, "channel should close on unsubscribe")
	case <-time.After(time.Second):
		t.Fatal("subscription channel not closed")
	}
}

func TestNormalizeJSONNarrowsIntegers(t *testing.T) {
	in := map[string]any{
		"Sequence": float64(42),
		"Big":      float64(5000000000),
		"Rate":     1.5,
		"Nested":   []any{map[string]any{"Flags": float64(0)}},
	}
	out := normalizeJSON(in).(map[string]any)
	assert.Equal(t, uint32(42), out["Sequence"])
	assert.Equal(t, uint64(5000000000), out["Big"])
	assert.Equal(t, 1.5, out["Rate"])
	nested := out["Nested"].([]any)[0].(map[string]any)
	assert.Equal(t, uint32(0), nested["Flags"])
}
