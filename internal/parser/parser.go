package parser

import (
	"errors"

	"github.com/LeJamon/xrplhist/internal/ledger"
)

// ErrNotPrepared is returned when Parse is handed a transaction that has
// not been through the pipeline's prepare step.
var ErrNotPrepared = errors.New("transaction not prepared")

// Parse decomposes one prepared transaction into its typed events.
//
// Transactions whose result is neither tesSUCCESS nor a tec-class code had
// no effect on the ledger: they are still indexed by account, type and
// result, but contribute no balance, exchange or payment events.
func Parse(tx *ledger.Transaction) (*Parsed, error) {
	if tx.Hash.IsZero() || tx.Meta == nil {
		return nil, ErrNotPrepared
	}

	nodes := unwrapNodes(tx.AffectedNodes())

	out := &Parsed{
		Memos:            memos(tx),
		AffectedAccounts: affectedAccounts(tx, nodes),
	}

	if !tx.ClaimedFee() {
		return out, nil
	}

	out.BalanceChanges, out.AccountsCreated = balanceChanges(tx, nodes)
	out.Exchanges = exchanges(tx, nodes)
	if p := payment(tx, out.BalanceChanges); p != nil {
		out.Payments = append(out.Payments, *p)
	}
	return out, nil
}
