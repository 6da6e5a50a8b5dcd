// Package ledger holds the domain model for closed XRPL ledgers and their
// transactions as they move through the ingestion pipeline.
package ledger

import (
	"errors"
	"fmt"
	"time"

	binarycodec "github.com/LeJamon/xrplhist/internal/codec/binarycodec"
	"github.com/LeJamon/xrplhist/internal/types"
)

var (
	// ErrNoMetadata is returned when a transaction arrives without its
	// state delta attached.
	ErrNoMetadata = errors.New("transaction has no metadata")

	// ErrMissingField is returned when a required field is absent from the
	// structured transaction.
	ErrMissingField = errors.New("missing required field")
)

// Ledger is one closed block of the chain, immutable once verified.
type Ledger struct {
	Index       uint32
	Hash        types.Hash256
	ParentHash  types.Hash256
	TxHash      types.Hash256
	AccountHash types.Hash256
	CloseTime   uint32 // seconds since the ripple epoch
	TotalCoins  string

	Transactions []*Transaction
}

// CloseTimeUTC converts the ledger close time to a standard UTC timestamp.
func (l *Ledger) CloseTimeUTC() time.Time {
	return RippleTimeToUTC(l.CloseTime)
}

// Transaction is one executed transaction with its attached state delta.
// Raw and MetaRaw are the canonical serializations; Hash is derived from Raw
// and never trusted from the wire.
type Transaction struct {
	Hash        types.Hash256
	LedgerIndex uint32
	TxIndex     uint32

	Type     string
	Account  string
	Sequence uint32
	Result   string
	Fee      string // drops

	Tx   map[string]any
	Meta map[string]any

	Raw     types.Blob
	MetaRaw types.Blob

	ExecutedAt time.Time
}

// jsonOnlyMetaKeys are metadata keys API servers synthesize into their
// JSON responses. They are not ST fields and never appear in the
// canonical metadata blob; the decomposer still reads them from the map.
var jsonOnlyMetaKeys = map[string]struct{}{
	"delivered_amount": {},
}

// canonicalMeta returns the metadata with JSON-only keys removed, copying
// only when something has to go.
func canonicalMeta(meta map[string]any) map[string]any {
	needsCopy := false
	for key := range jsonOnlyMetaKeys {
		if _, ok := meta[key]; ok {
			needsCopy = true
			break
		}
	}
	if !needsCopy {
		return meta
	}

	clean := make(map[string]any, len(meta))
	for k, v := range meta {
		if _, ok := jsonOnlyMetaKeys[k]; ok {
			continue
		}
		clean[k] = v
	}
	return clean
}

// Prepare computes the canonical bytes and content hash for a structured
// transaction and fills in the ledger context. It is the Received -> Prepared
// step of the pipeline.
func (t *Transaction) Prepare(l *Ledger) error {
	if t.Meta == nil {
		return ErrNoMetadata
	}

	account, _ := t.Tx["Account"].(string)
	txType, _ := t.Tx["TransactionType"].(string)
	if account == "" || txType == "" {
		return fmt.Errorf("%w: Account and TransactionType are required", ErrMissingField)
	}

	raw, err := binarycodec.Encode(t.Tx)
	if err != nil {
		return fmt.Errorf("serialize transaction: %w", err)
	}
	metaRaw, err := binarycodec.Encode(canonicalMeta(t.Meta))
	if err != nil {
		return fmt.Errorf("serialize metadata: %w", err)
	}

	t.Raw = raw
	t.MetaRaw = metaRaw
	t.Hash = binarycodec.TransactionID(raw)
	t.Account = account
	t.Type = txType
	if seq, ok := t.Tx["Sequence"].(uint32); ok {
		t.Sequence = seq
	}
	if fee, ok := t.Tx["Fee"].(string); ok {
		t.Fee = fee
	}
	if result, ok := t.Meta["TransactionResult"].(string); ok {
		t.Result = result
	}
	if idx, ok := t.Meta["TransactionIndex"].(uint32); ok {
		t.TxIndex = idx
	}

	t.LedgerIndex = l.Index
	t.ExecutedAt = l.CloseTimeUTC()
	return nil
}

// Successful reports whether the transaction executed fully.
func (t *Transaction) Successful() bool {
	return t.Result == "tesSUCCESS"
}

// ClaimedFee reports whether the transaction at least claimed its fee:
// full success or a tec-class partial failure. Anything else produces no
// economic events.
func (t *Transaction) ClaimedFee() bool {
	if t.Result == "tesSUCCESS" {
		return true
	}
	return len(t.Result) > 3 && t.Result[:3] == "tec"
}

// AffectedNodes returns the metadata's state delta list in wire order.
func (t *Transaction) AffectedNodes() []map[string]any {
	raw, _ := t.Meta["AffectedNodes"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if node, ok := item.(map[string]any); ok {
			out = append(out, node)
		}
	}
	return out
}
