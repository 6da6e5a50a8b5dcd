package validator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LeJamon/xrplhist/internal/ledger"
	"github.com/LeJamon/xrplhist/internal/source"
	"github.com/LeJamon/xrplhist/internal/storage"
	"github.com/LeJamon/xrplhist/internal/types"
)

type tipSource struct {
	tip uint32
}

func (s *tipSource) SubscribeClosedLedgers(ctx context.Context) (<-chan source.ClosedLedger, error) {
	ch := make(chan source.ClosedLedger)
	close(ch)
	return ch, nil
}

func (s *tipSource) FetchLedger(ctx context.Context, id source.LedgerID, opts source.FetchOptions) (*ledger.Ledger, error) {
	return &ledger.Ledger{Index: s.tip}, nil
}

func (s *tipSource) Close() error { return nil }

type recordingReimporter struct {
	mu    sync.Mutex
	calls []uint32
}

func (r *recordingReimporter) ReimportLedger(ctx context.Context, index uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, index)
	return nil
}

func (r *recordingReimporter) indices() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint32(nil), r.calls...)
}

func newTestGateway(t *testing.T) storage.Gateway {
	t.Helper()
	cfg := storage.DefaultConfig()
	cfg.Backend = "memory"
	cfg.Path = ""
	cfg.RetryBackoff = time.Millisecond
	cfg.IdleTimeout = 0
	gw, err := storage.Open(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })
	return gw
}

// makeLedger builds a prepared single-transaction ledger whose declared
// transaction-set hash matches its contents.
func makeLedger(t *testing.T, index uint32, parent types.Hash256) *ledger.Ledger {
	t.Helper()
	tx := &ledger.Transaction{
		Tx: map[string]any{
			"TransactionType": "Payment",
			"Account":         "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
			"Destination":     "rrrrrrrrrrrrrrrrrrrrBZbvji",
			"Amount":          "1000000",
			"Fee":             "10",
			"Sequence":        index, // distinct content per ledger
		},
		Meta: map[string]any{
			"TransactionResult": "tesSUCCESS",
			"TransactionIndex":  uint32(0),
			"AffectedNodes":     []any{},
		},
	}

	l := &ledger.Ledger{
		Index:        index,
		Hash:         types.Hash256FromData([]byte{byte(index), byte(index >> 8)}),
		ParentHash:   parent,
		CloseTime:    478920000 + index,
		Transactions: []*ledger.Transaction{tx},
	}
	tx.TxIndex = 0
	require.NoError(t, tx.Prepare(l))

	txHash, err := ledger.TxSetHash(l.Transactions)
	require.NoError(t, err)
	l.TxHash = txHash
	return l
}

// store writes the ledger's transaction rows and header the way the
// pipeline does.
func store(t *testing.T, gw storage.Gateway, l *ledger.Ledger) {
	t.Helper()
	ctx := context.Background()
	for _, tx := range l.Transactions {
		require.NoError(t, gw.PutRows(ctx, storage.TableTransactions, []storage.Row{
			storage.NewTransactionRow(tx).ToRow(),
		}))
	}
	require.NoError(t, gw.PutRows(ctx, storage.TableLedgers, []storage.Row{
		storage.NewLedgerRow(l).ToRow(),
	}))
}

func newTestValidator(gw storage.Gateway, tip uint32, re Reimporter) *Validator {
	cfg := DefaultConfig()
	cfg.StartIndex = 100
	cfg.RecoverBackoff = time.Millisecond
	return New(cfg, gw, &tipSource{tip: tip}, re, nil, zap.NewNop())
}

func TestBootstrapAndAdvanceToTip(t *testing.T) {
	gw := newTestGateway(t)
	l100 := makeLedger(t, 100, types.Hash256FromData([]byte("ledger-99")))
	l101 := makeLedger(t, 101, l100.Hash)
	store(t, gw, l100)
	store(t, gw, l101)

	re := &recordingReimporter{}
	v := newTestValidator(gw, 101, re)
	ctx := context.Background()

	// First cycle bootstraps at the start index.
	wait, err := v.Cycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, wait)
	cp, err := storage.LoadCheckpoint(ctx, gw)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), cp.LastValidatedIndex)
	assert.Equal(t, l100.Hash.String(), cp.LastValidatedHash)

	// Second cycle advances across a verified parent link.
	wait, err = v.Cycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, wait)
	cp, err = storage.LoadCheckpoint(ctx, gw)
	require.NoError(t, err)
	assert.Equal(t, uint32(101), cp.LastValidatedIndex)

	// Third cycle is at the tip and sleeps instead of re-importing.
	wait, err = v.Cycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, v.cfg.TipInterval, wait)
	assert.Empty(t, re.indices())
}

func TestMissingLedgerTriggersReimport(t *testing.T) {
	gw := newTestGateway(t)
	l100 := makeLedger(t, 100, types.Hash256FromData([]byte("ledger-99")))
	store(t, gw, l100)

	re := &recordingReimporter{}
	v := newTestValidator(gw, 105, re)
	ctx := context.Background()

	_, err := v.Cycle(ctx) // bootstrap
	require.NoError(t, err)

	// Ledger 101 is below the tip but absent: a gap, not the tip.
	wait, err := v.Cycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, v.cfg.RecoverBackoff, wait)
	assert.Equal(t, []uint32{101}, re.indices())

	// The checkpoint did not advance past the gap.
	cp, err := storage.LoadCheckpoint(ctx, gw)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), cp.LastValidatedIndex)
}

func TestTxSetMismatchTriggersReimport(t *testing.T) {
	gw := newTestGateway(t)
	l100 := makeLedger(t, 100, types.Hash256FromData([]byte("ledger-99")))
	l101 := makeLedger(t, 101, l100.Hash)
	l101.TxHash = types.Hash256FromData([]byte("tampered"))
	store(t, gw, l100)
	store(t, gw, l101)

	re := &recordingReimporter{}
	v := newTestValidator(gw, 105, re)
	ctx := context.Background()

	_, err := v.Cycle(ctx) // bootstrap
	require.NoError(t, err)

	wait, err := v.Cycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, v.cfg.RecoverBackoff, wait)
	assert.Equal(t, []uint32{101}, re.indices())

	cp, err := storage.LoadCheckpoint(ctx, gw)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), cp.LastValidatedIndex)
}

func TestMissingTransactionRowTriggersReimport(t *testing.T) {
	gw := newTestGateway(t)
	l100 := makeLedger(t, 100, types.Hash256FromData([]byte("ledger-99")))
	l101 := makeLedger(t, 101, l100.Hash)
	store(t, gw, l100)
	// Header only: the transaction rows never landed.
	require.NoError(t, gw.PutRows(context.Background(), storage.TableLedgers, []storage.Row{
		storage.NewLedgerRow(l101).ToRow(),
	}))

	re := &recordingReimporter{}
	v := newTestValidator(gw, 105, re)
	ctx := context.Background()

	_, err := v.Cycle(ctx) // bootstrap
	require.NoError(t, err)

	_, err = v.Cycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint32{101}, re.indices())
}

func TestBrokenParentLinkStepsBackAndRebootstraps(t *testing.T) {
	gw := newTestGateway(t)
	l100 := makeLedger(t, 100, types.Hash256FromData([]byte("ledger-99")))
	l101 := makeLedger(t, 101, types.Hash256FromData([]byte("some other fork")))
	store(t, gw, l100)
	store(t, gw, l101)

	re := &recordingReimporter{}
	v := newTestValidator(gw, 105, re)
	ctx := context.Background()

	_, err := v.Cycle(ctx) // bootstrap at 100
	require.NoError(t, err)

	// Parent mismatch at the start of the chain clears the checkpoint.
	wait, err := v.Cycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, wait)
	cp, err := storage.LoadCheckpoint(ctx, gw)
	require.NoError(t, err)
	assert.Empty(t, cp.LastValidatedHash)

	// Next cycle bootstraps again from the start index.
	_, err = v.Cycle(ctx)
	require.NoError(t, err)
	cp, err = storage.LoadCheckpoint(ctx, gw)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), cp.LastValidatedIndex)
	assert.Equal(t, l100.Hash.String(), cp.LastValidatedHash)
}
