// Package parser decomposes executed transactions into typed economic
// events: exchanges, payments, balance changes, created accounts, memos and
// affected-account index entries. Parse is a pure function of the prepared
// transaction and its metadata; every event it produces can be recomputed at
// any time from the stored transaction row.
package parser

import (
	"time"

	"github.com/LeJamon/xrplhist/internal/types"
)

// Asset identifies a currency, with an empty issuer for native XRP.
type Asset struct {
	Currency string
	Issuer   string
}

// IsNative reports whether the asset is XRP.
func (a Asset) IsNative() bool {
	return a.Currency == "XRP" && a.Issuer == ""
}

// Key returns the lowercase "currency.issuer" string used for canonical
// pair ordering. XRP is always "xrp".
func (a Asset) Key() string {
	if a.IsNative() {
		return "xrp"
	}
	return lower(a.Currency) + "." + lower(a.Issuer)
}

// Exchange is one executed trade derived from an order book entry's
// before/after state. Base and counter are canonically ordered so a given
// asset pair always aggregates under one key regardless of trade direction.
type Exchange struct {
	Base          Asset
	Counter       Asset
	BaseAmount    string // decimal, display units
	CounterAmount string // decimal, display units
	Rate          string // counter per base

	Buyer  string
	Seller string
	Taker  string

	OfferSequence uint32

	LedgerIndex uint32
	TxIndex     uint32
	NodeIndex   int
	TxHash      types.Hash256
	ExecutedAt  time.Time
}

// Payment is the aggregated view of a Payment transaction.
type Payment struct {
	Source      string
	Destination string

	Asset           Asset
	Amount          string // declared amount, display units
	DeliveredAmount string // actually delivered, display units
	MaxAmount       string // SendMax, if present
	Fee             string // display units (XRP)

	SourceTag      uint32
	DestinationTag uint32

	SourceBalanceChanges      []AmountDelta
	DestinationBalanceChanges []AmountDelta

	LedgerIndex uint32
	TxIndex     uint32
	TxHash      types.Hash256
	ExecutedAt  time.Time
}

// AmountDelta is a single signed currency movement inside a payment.
type AmountDelta struct {
	Asset Asset
	Value string // signed decimal, display units
}

// Balance change classifications.
const (
	ChangeNetworkFee         = "network_fee"
	ChangePaymentSource      = "payment_source"
	ChangePaymentDestination = "payment_destination"
	ChangeExchange           = "exchange"
	ChangeIntermediary       = "intermediary"
)

// FeeNodeIndex marks the synthetic fee balance change, which belongs to the
// transaction rather than to any metadata node.
const FeeNodeIndex = -1

// BalanceChange is one signed balance delta for one account.
type BalanceChange struct {
	Account      string
	Asset        Asset
	Change       string // signed decimal, display units
	FinalBalance string
	ChangeType   string

	// NodeIndex is the position of the originating metadata node, or
	// FeeNodeIndex for the synthetic network fee change.
	NodeIndex int

	LedgerIndex uint32
	TxIndex     uint32
	TxHash      types.Hash256
	ExecutedAt  time.Time
}

// AccountCreated records the funding of a new account.
type AccountCreated struct {
	Account string
	Parent  string
	Balance string // initial balance, display units

	LedgerIndex uint32
	TxIndex     uint32
	TxHash      types.Hash256
	ExecutedAt  time.Time
}

// Memo is one memo attached to a transaction. The decoded fields are
// best-effort: a failed decode leaves them empty and is not an error.
type Memo struct {
	Account     string
	Destination string

	MemoType   string // raw hex
	MemoData   string
	MemoFormat string

	DecodedType   string
	DecodedData   string
	DecodedFormat string

	MemoIndex   int
	LedgerIndex uint32
	TxIndex     uint32
	TxHash      types.Hash256
	ExecutedAt  time.Time
}

// AffectedAccount is an index entry for "all transactions touching account X".
type AffectedAccount struct {
	Account  string
	TxType   string
	TxResult string

	LedgerIndex uint32
	TxIndex     uint32
	TxHash      types.Hash256
	ExecutedAt  time.Time
}

// Parsed is the full decomposition of one transaction.
type Parsed struct {
	Exchanges        []Exchange
	Payments         []Payment
	BalanceChanges   []BalanceChange
	AccountsCreated  []AccountCreated
	Memos            []Memo
	AffectedAccounts []AffectedAccount
}

func lower(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
