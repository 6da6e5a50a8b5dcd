package source

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/LeJamon/xrplhist/internal/ledger"
	"github.com/LeJamon/xrplhist/internal/types"
)

// ledgerResult is the "ledger" command response payload.
type ledgerResult struct {
	Ledger    json.RawMessage `json:"ledger"`
	Validated bool            `json:"validated"`
}

// ledgerJSON is the ledger object as the server renders it. ledger_index
// arrives as a string here, unlike the stream notifications.
type ledgerJSON struct {
	Closed          bool             `json:"closed"`
	LedgerIndex     json.Number      `json:"ledger_index"`
	LedgerHash      string           `json:"ledger_hash"`
	ParentHash      string           `json:"parent_hash"`
	TransactionHash string           `json:"transaction_hash"`
	AccountHash     string           `json:"account_hash"`
	CloseTime       uint32           `json:"close_time"`
	TotalCoins      string           `json:"total_coins"`
	Transactions    []map[string]any `json:"transactions"`
}

// parseLedgerResult maps a ledger response to the domain model and reports
// whether the server flagged it closed.
func parseLedgerResult(raw json.RawMessage) (*ledger.Ledger, bool, error) {
	var result ledgerResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, fmt.Errorf("decode result: %w", err)
	}

	var lj ledgerJSON
	if err := json.Unmarshal(result.Ledger, &lj); err != nil {
		return nil, false, fmt.Errorf("decode ledger: %w", err)
	}
	if !lj.Closed {
		return nil, false, nil
	}

	index, err := strconv.ParseUint(lj.LedgerIndex.String(), 10, 32)
	if err != nil {
		return nil, false, fmt.Errorf("ledger_index %q: %w", lj.LedgerIndex, err)
	}

	l := &ledger.Ledger{
		Index:      uint32(index),
		CloseTime:  lj.CloseTime,
		TotalCoins: lj.TotalCoins,
	}
	if l.Hash, err = hashFromHex(lj.LedgerHash); err != nil {
		return nil, false, fmt.Errorf("ledger_hash: %w", err)
	}
	if l.ParentHash, err = hashFromHex(lj.ParentHash); err != nil {
		return nil, false, fmt.Errorf("parent_hash: %w", err)
	}
	if l.TxHash, err = hashFromHex(lj.TransactionHash); err != nil {
		return nil, false, fmt.Errorf("transaction_hash: %w", err)
	}
	if l.AccountHash, err = hashFromHex(lj.AccountHash); err != nil {
		return nil, false, fmt.Errorf("account_hash: %w", err)
	}

	for i, txJSON := range lj.Transactions {
		tx, err := parseTransaction(txJSON)
		if err != nil {
			return nil, false, fmt.Errorf("transaction %d: %w", i, err)
		}
		l.Transactions = append(l.Transactions, tx)
	}
	return l, true, nil
}

// parseTransaction splits one expanded transaction object into its
// transaction fields and metadata, with JSON numbers narrowed to the
// integer widths the codec and parser work with.
func parseTransaction(txJSON map[string]any) (*ledger.Transaction, error) {
	meta, ok := txJSON["metaData"].(map[string]any)
	if !ok {
		if meta, ok = txJSON["meta"].(map[string]any); !ok {
			return nil, ledger.ErrNoMetadata
		}
	}

	tx := make(map[string]any, len(txJSON))
	for name, v := range txJSON {
		switch name {
		// Server-side decorations, not serialized fields.
		case "metaData", "meta", "hash", "validated", "date", "inLedger", "ledger_index":
			continue
		}
		tx[name] = normalizeJSON(v)
	}

	return &ledger.Transaction{
		Tx:   tx,
		Meta: normalizeJSON(meta).(map[string]any),
	}, nil
}

// normalizeJSON rewrites float64 JSON numbers to the narrowest unsigned
// integer that holds them, recursively. All numeric fields on the ledger
// wire are unsigned; amounts and 64-bit quantities arrive as strings.
func normalizeJSON(v any) any {
	switch val := v.(type) {
	case float64:
		if val >= 0 && val == math.Trunc(val) {
			if val <= math.MaxUint32 {
				return uint32(val)
			}
			return uint64(val)
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeJSON(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeJSON(item)
		}
		return out
	default:
		return v
	}
}

func hashFromHex(s string) (types.Hash256, error) {
	return types.Hash256FromHex(s)
}
