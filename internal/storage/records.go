package storage

import (
	"fmt"
	"time"

	"github.com/LeJamon/xrplhist/internal/codec/binarycodec"
	"github.com/LeJamon/xrplhist/internal/ledger"
	"github.com/LeJamon/xrplhist/internal/parser"
	"github.com/LeJamon/xrplhist/internal/types"
)

// Each table stores one explicit record type with a single mapping to the
// column encoding, so a renamed column is a compile error rather than a
// runtime typo. Timestamps are stored as unix seconds.

// LedgerRow is the stored form of a verified ledger header.
type LedgerRow struct {
	Index       uint32
	Hash        string
	ParentHash  string
	TxHash      string
	AccountHash string
	CloseTime   time.Time
	TotalCoins  string
	TxCount     int

	// TxHashes lists the ledger's transaction hashes in tx_index order, so
	// the validator can rebuild the transaction set from point lookups.
	TxHashes []string
}

// LedgerKey is the rowkey of the ledger with the given index.
func LedgerKey(index uint32) string {
	return PadIndex(index)
}

// NewLedgerRow maps a verified ledger header to its stored row.
func NewLedgerRow(l *ledger.Ledger) LedgerRow {
	hashes := make([]string, 0, len(l.Transactions))
	for _, tx := range l.Transactions {
		hashes = append(hashes, tx.Hash.String())
	}
	return LedgerRow{
		Index:       l.Index,
		Hash:        l.Hash.String(),
		ParentHash:  l.ParentHash.String(),
		TxHash:      l.TxHash.String(),
		AccountHash: l.AccountHash.String(),
		CloseTime:   l.CloseTimeUTC(),
		TotalCoins:  l.TotalCoins,
		TxCount:     len(l.Transactions),
		TxHashes:    hashes,
	}
}

// ToRow encodes the record for storage.
func (r LedgerRow) ToRow() Row {
	return Row{
		Key: LedgerKey(r.Index),
		Columns: map[string]any{
			"index":        r.Index,
			"hash":         r.Hash,
			"parent_hash":  r.ParentHash,
			"tx_hash":      r.TxHash,
			"account_hash": r.AccountHash,
			"close_time":   r.CloseTime.Unix(),
			"total_coins":  r.TotalCoins,
			"tx_count":     r.TxCount,
			"tx_hashes":    r.TxHashes,
		},
	}
}

// LedgerRowFromRow decodes a stored ledger row.
func LedgerRowFromRow(row Row) (LedgerRow, error) {
	r := LedgerRow{
		Index:       colUint32(row.Columns, "index"),
		Hash:        colString(row.Columns, "hash"),
		ParentHash:  colString(row.Columns, "parent_hash"),
		TxHash:      colString(row.Columns, "tx_hash"),
		AccountHash: colString(row.Columns, "account_hash"),
		CloseTime:   colTime(row.Columns, "close_time"),
		TotalCoins:  colString(row.Columns, "total_coins"),
		TxCount:     colInt(row.Columns, "tx_count"),
		TxHashes:    colStrings(row.Columns, "tx_hashes"),
	}
	if r.Hash == "" {
		return LedgerRow{}, fmt.Errorf("%w: ledger row %s has no hash", ErrBadRow, row.Key)
	}
	return r, nil
}

// TransactionRow is the authoritative stored form of one transaction. The
// canonical raw and metadata bytes are kept so every derived event can be
// recomputed from this row alone.
type TransactionRow struct {
	Hash        string
	LedgerIndex uint32
	TxIndex     uint32
	Type        string
	Account     string
	Sequence    uint32
	Result      string
	Fee         string
	Raw         []byte
	MetaRaw     []byte
	ExecutedAt  time.Time
}

// TransactionKey is the rowkey of a transaction: its content hash.
func TransactionKey(hash types.Hash256) string {
	return hash.String()
}

// NewTransactionRow maps a prepared transaction to its stored row.
func NewTransactionRow(t *ledger.Transaction) TransactionRow {
	return TransactionRow{
		Hash:        t.Hash.String(),
		LedgerIndex: t.LedgerIndex,
		TxIndex:     t.TxIndex,
		Type:        t.Type,
		Account:     t.Account,
		Sequence:    t.Sequence,
		Result:      t.Result,
		Fee:         t.Fee,
		Raw:         t.Raw,
		MetaRaw:     t.MetaRaw,
		ExecutedAt:  t.ExecutedAt,
	}
}

// ToRow encodes the record for storage.
func (r TransactionRow) ToRow() Row {
	return Row{
		Key: r.Hash,
		Columns: map[string]any{
			"ledger_index": r.LedgerIndex,
			"tx_index":     r.TxIndex,
			"type":         r.Type,
			"account":      r.Account,
			"sequence":     r.Sequence,
			"result":       r.Result,
			"fee":          r.Fee,
			"raw":          r.Raw,
			"meta":         r.MetaRaw,
			"executed_at":  r.ExecutedAt.Unix(),
		},
	}
}

// TransactionRowFromRow decodes a stored transaction row.
func TransactionRowFromRow(row Row) (TransactionRow, error) {
	r := TransactionRow{
		Hash:        row.Key,
		LedgerIndex: colUint32(row.Columns, "ledger_index"),
		TxIndex:     colUint32(row.Columns, "tx_index"),
		Type:        colString(row.Columns, "type"),
		Account:     colString(row.Columns, "account"),
		Sequence:    colUint32(row.Columns, "sequence"),
		Result:      colString(row.Columns, "result"),
		Fee:         colString(row.Columns, "fee"),
		Raw:         colBytes(row.Columns, "raw"),
		MetaRaw:     colBytes(row.Columns, "meta"),
		ExecutedAt:  colTime(row.Columns, "executed_at"),
	}
	if len(r.Raw) == 0 {
		return TransactionRow{}, fmt.Errorf("%w: transaction row %s has no raw bytes", ErrBadRow, row.Key)
	}
	return r, nil
}

// ToTransaction rebuilds the structured transaction from the stored
// canonical bytes, ready for re-decomposition.
func (r TransactionRow) ToTransaction() (*ledger.Transaction, error) {
	tx, err := binarycodec.Decode(r.Raw)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", r.Hash, err)
	}
	meta, err := binarycodec.Decode(r.MetaRaw)
	if err != nil {
		return nil, fmt.Errorf("transaction %s metadata: %w", r.Hash, err)
	}

	hash, err := types.Hash256FromHex(r.Hash)
	if err != nil {
		return nil, fmt.Errorf("transaction row key: %w", err)
	}
	return &ledger.Transaction{
		Hash:        hash,
		LedgerIndex: r.LedgerIndex,
		TxIndex:     r.TxIndex,
		Type:        r.Type,
		Account:     r.Account,
		Sequence:    r.Sequence,
		Result:      r.Result,
		Fee:         r.Fee,
		Tx:          tx,
		Meta:        meta,
		Raw:         r.Raw,
		MetaRaw:     r.MetaRaw,
		ExecutedAt:  r.ExecutedAt,
	}, nil
}

// ExchangeRowKey keys exchanges by canonical pair then time, so one pair's
// history is a contiguous scan.
func ExchangeRowKey(ex parser.Exchange) string {
	return Key(
		ex.Base.Key(),
		ex.Counter.Key(),
		TimeKey(ex.ExecutedAt),
		PadIndex(ex.LedgerIndex),
		PadOffset(int(ex.TxIndex)),
		PadOffset(ex.NodeIndex),
	)
}

// ExchangeRow encodes one exchange event for storage.
func ExchangeRow(ex parser.Exchange) Row {
	return Row{
		Key: ExchangeRowKey(ex),
		Columns: map[string]any{
			"base_currency":    ex.Base.Currency,
			"base_issuer":      ex.Base.Issuer,
			"counter_currency": ex.Counter.Currency,
			"counter_issuer":   ex.Counter.Issuer,
			"base_amount":      ex.BaseAmount,
			"counter_amount":   ex.CounterAmount,
			"rate":             ex.Rate,
			"buyer":            ex.Buyer,
			"seller":           ex.Seller,
			"taker":            ex.Taker,
			"offer_sequence":   ex.OfferSequence,
			"ledger_index":     ex.LedgerIndex,
			"tx_index":         ex.TxIndex,
			"node_index":       ex.NodeIndex,
			"tx_hash":          ex.TxHash.String(),
			"executed_at":      ex.ExecutedAt.Unix(),
		},
	}
}

// PaymentRow encodes one payment event, keyed by source account and time.
func PaymentRow(p parser.Payment) Row {
	return Row{
		Key: Key(p.Source, TimeKey(p.ExecutedAt), PadIndex(p.LedgerIndex), PadOffset(int(p.TxIndex))),
		Columns: map[string]any{
			"source":           p.Source,
			"destination":      p.Destination,
			"currency":         p.Asset.Currency,
			"issuer":           p.Asset.Issuer,
			"amount":           p.Amount,
			"delivered_amount": p.DeliveredAmount,
			"max_amount":       p.MaxAmount,
			"fee":              p.Fee,
			"source_tag":       p.SourceTag,
			"destination_tag":  p.DestinationTag,
			"source_changes":   deltaColumns(p.SourceBalanceChanges),
			"dest_changes":     deltaColumns(p.DestinationBalanceChanges),
			"ledger_index":     p.LedgerIndex,
			"tx_index":         p.TxIndex,
			"tx_hash":          p.TxHash.String(),
			"executed_at":      p.ExecutedAt.Unix(),
		},
	}
}

func deltaColumns(deltas []parser.AmountDelta) []map[string]any {
	out := make([]map[string]any, 0, len(deltas))
	for _, d := range deltas {
		out = append(out, map[string]any{
			"currency": d.Asset.Currency,
			"issuer":   d.Asset.Issuer,
			"value":    d.Value,
		})
	}
	return out
}

// BalanceChangeRow encodes one balance change, keyed by account and time.
// The synthetic fee change uses the literal "fee" node component.
func BalanceChangeRow(c parser.BalanceChange) Row {
	node := "fee"
	if c.NodeIndex != parser.FeeNodeIndex {
		node = PadOffset(c.NodeIndex)
	}
	return Row{
		Key: Key(c.Account, TimeKey(c.ExecutedAt), PadIndex(c.LedgerIndex), PadOffset(int(c.TxIndex)), node),
		Columns: map[string]any{
			"account":       c.Account,
			"currency":      c.Asset.Currency,
			"issuer":        c.Asset.Issuer,
			"change":        c.Change,
			"final_balance": c.FinalBalance,
			"change_type":   c.ChangeType,
			"ledger_index":  c.LedgerIndex,
			"tx_index":      c.TxIndex,
			"tx_hash":       c.TxHash.String(),
			"executed_at":   c.ExecutedAt.Unix(),
		},
	}
}

// AccountCreatedRow encodes an account funding event, keyed by the new
// account so its origin is a point lookup.
func AccountCreatedRow(a parser.AccountCreated) Row {
	return Row{
		Key: a.Account,
		Columns: map[string]any{
			"account":      a.Account,
			"parent":       a.Parent,
			"balance":      a.Balance,
			"ledger_index": a.LedgerIndex,
			"tx_index":     a.TxIndex,
			"tx_hash":      a.TxHash.String(),
			"executed_at":  a.ExecutedAt.Unix(),
		},
	}
}

// MemoRow encodes one memo, keyed by sending account and time.
func MemoRow(m parser.Memo) Row {
	return Row{
		Key: Key(m.Account, TimeKey(m.ExecutedAt), PadIndex(m.LedgerIndex), PadOffset(int(m.TxIndex)), PadOffset(m.MemoIndex)),
		Columns: map[string]any{
			"account":        m.Account,
			"destination":    m.Destination,
			"memo_type":      m.MemoType,
			"memo_data":      m.MemoData,
			"memo_format":    m.MemoFormat,
			"decoded_type":   m.DecodedType,
			"decoded_data":   m.DecodedData,
			"decoded_format": m.DecodedFormat,
			"memo_index":     m.MemoIndex,
			"ledger_index":   m.LedgerIndex,
			"tx_index":       m.TxIndex,
			"tx_hash":        m.TxHash.String(),
			"executed_at":    m.ExecutedAt.Unix(),
		},
	}
}

// AffectedAccountRow encodes one account index entry, keyed so every
// transaction touching an account over a time range is one scan.
func AffectedAccountRow(a parser.AffectedAccount) Row {
	return Row{
		Key: Key(a.Account, TimeKey(a.ExecutedAt), PadIndex(a.LedgerIndex), PadOffset(int(a.TxIndex))),
		Columns: map[string]any{
			"account":      a.Account,
			"tx_type":      a.TxType,
			"tx_result":    a.TxResult,
			"ledger_index": a.LedgerIndex,
			"tx_index":     a.TxIndex,
			"tx_hash":      a.TxHash.String(),
			"executed_at":  a.ExecutedAt.Unix(),
		},
	}
}

// AccountScanRange bounds a scan over an account-keyed table for the given
// account and closed time range. A zero "until" extends to the present.
func AccountScanRange(account string, from, until time.Time) (start, stop string) {
	start = account + KeySep
	if !from.IsZero() {
		start = Key(account, TimeKey(from))
	}
	if until.IsZero() {
		return start, PrefixEnd(account + KeySep)
	}
	return start, PrefixEnd(Key(account, TimeKey(until)))
}

// Column decoding helpers. CBOR widens integers on the way back, so the
// numeric readers accept any integer shape.

func colString(columns map[string]any, name string) string {
	s, _ := columns[name].(string)
	return s
}

func colBytes(columns map[string]any, name string) []byte {
	switch v := columns[name].(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return nil
	}
}

func colStrings(columns map[string]any, name string) []string {
	switch v := columns[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func colInt(columns map[string]any, name string) int {
	return int(colInt64(columns, name))
}

func colUint32(columns map[string]any, name string) uint32 {
	return uint32(colInt64(columns, name))
}

func colTime(columns map[string]any, name string) time.Time {
	sec := colInt64(columns, name)
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func colInt64(columns map[string]any, name string) int64 {
	switch v := columns[name].(type) {
	case int64:
		return v
	case uint64:
		return int64(v)
	case int:
		return int64(v)
	case uint32:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
