package parser

import (
	"math/big"

	"github.com/LeJamon/xrplhist/internal/ledger"
)

// balanceChanges extracts every balance delta from the transaction's state
// nodes, plus the synthetic network fee change, plus any account creations.
func balanceChanges(tx *ledger.Transaction, nodes []affectedNode) ([]BalanceChange, []AccountCreated) {
	var changes []BalanceChange
	var created []AccountCreated

	for _, node := range nodes {
		switch node.Entry {
		case "AccountRoot":
			change, newAccount, ok := accountRootChange(tx, node)
			if !ok {
				continue
			}
			changes = append(changes, change...)
			if newAccount != nil {
				created = append(created, *newAccount)
			}
		case "RippleState":
			change, ok := rippleStateChange(tx, node)
			if !ok {
				continue
			}
			changes = append(changes, change...)
		}
	}
	return changes, created
}

// accountRootChange computes the native balance delta of one AccountRoot
// node. For the transaction sender the network fee is reported separately
// and netted out of the principal change.
func accountRootChange(tx *ledger.Transaction, node affectedNode) ([]BalanceChange, *AccountCreated, bool) {
	account := node.finalString("Account")
	if account == "" {
		return nil, nil, false
	}

	finalDrops := node.finalString("Balance")
	if finalDrops == "" {
		return nil, nil, false
	}
	finalBal, err := dropsValue(finalDrops)
	if err != nil {
		return nil, nil, false
	}

	var prevBal *big.Rat
	if node.created() {
		prevBal = new(big.Rat)
	} else {
		prevDrops, _ := node.Previous["Balance"].(string)
		if prevDrops == "" {
			// Balance untouched: node was modified for sequence/owner
			// count only. The sender still owes the fee.
			if account == tx.Account {
				if fee := feeChange(tx, finalBal); fee != nil {
					return []BalanceChange{*fee}, nil, true
				}
			}
			return nil, nil, false
		}
		prevBal, err = dropsValue(prevDrops)
		if err != nil {
			return nil, nil, false
		}
	}

	delta := new(big.Rat).Sub(finalBal, prevBal)
	native := Asset{Currency: "XRP"}

	var out []BalanceChange
	if account == tx.Account {
		if fee := feeChange(tx, finalBal); fee != nil {
			out = append(out, *fee)
			// The principal change is what remains after the fee.
			feeAmt, _ := dropsValue(tx.Fee)
			delta.Add(delta, feeAmt)
		}
	}

	if delta.Sign() != 0 {
		out = append(out, BalanceChange{
			Account:      account,
			Asset:        native,
			Change:       ratString(delta),
			FinalBalance: ratString(finalBal),
			ChangeType:   classifyNativeChange(tx, account),
			NodeIndex:    node.Index,
			LedgerIndex:  tx.LedgerIndex,
			TxIndex:      tx.TxIndex,
			TxHash:       tx.Hash,
			ExecutedAt:   tx.ExecutedAt,
		})
	}

	var newAccount *AccountCreated
	if node.created() {
		newAccount = &AccountCreated{
			Account:     account,
			Parent:      tx.Account,
			Balance:     ratString(finalBal),
			LedgerIndex: tx.LedgerIndex,
			TxIndex:     tx.TxIndex,
			TxHash:      tx.Hash,
			ExecutedAt:  tx.ExecutedAt,
		}
	}
	return out, newAccount, true
}

// feeChange builds the synthetic network fee change for the sender.
func feeChange(tx *ledger.Transaction, finalBal *big.Rat) *BalanceChange {
	if tx.Fee == "" {
		return nil
	}
	fee, err := dropsValue(tx.Fee)
	if err != nil || fee.Sign() == 0 {
		return nil
	}
	return &BalanceChange{
		Account:      tx.Account,
		Asset:        Asset{Currency: "XRP"},
		Change:       ratString(new(big.Rat).Neg(fee)),
		FinalBalance: ratString(finalBal),
		ChangeType:   ChangeNetworkFee,
		NodeIndex:    FeeNodeIndex,
		LedgerIndex:  tx.LedgerIndex,
		TxIndex:      tx.TxIndex,
		TxHash:       tx.Hash,
		ExecutedAt:   tx.ExecutedAt,
	}
}

// rippleStateChange computes the signed delta of a trust line. The stored
// balance is from the low account's perspective: a negative value means the
// low account owes the high account, so account and issuer roles swap with
// the sign.
func rippleStateChange(tx *ledger.Transaction, node affectedNode) ([]BalanceChange, bool) {
	finalAsset, finalBal, err := amountValue(node.Final["Balance"])
	if err != nil {
		return nil, false
	}

	var prevBal *big.Rat
	if node.created() {
		prevBal = new(big.Rat)
	} else if prevAmt, ok := node.Previous["Balance"]; ok {
		_, prevBal, err = amountValue(prevAmt)
		if err != nil {
			return nil, false
		}
	} else {
		return nil, false
	}

	delta := new(big.Rat).Sub(finalBal, prevBal)
	if delta.Sign() == 0 {
		return nil, false
	}

	lowAsset, _, lowErr := amountValue(node.Final["LowLimit"])
	highAsset, _, highErr := amountValue(node.Final["HighLimit"])
	if lowErr != nil || highErr != nil {
		return nil, false
	}

	account := lowAsset.Issuer
	issuer := highAsset.Issuer
	if finalBal.Sign() < 0 || (finalBal.Sign() == 0 && prevBal.Sign() < 0) {
		// Low account in debt: report from the high account's side.
		account, issuer = issuer, account
		delta.Neg(delta)
		finalBal = new(big.Rat).Neg(finalBal)
	}

	change := BalanceChange{
		Account:      account,
		Asset:        Asset{Currency: finalAsset.Currency, Issuer: issuer},
		Change:       ratString(delta),
		FinalBalance: ratString(finalBal),
		ChangeType:   classifyIssuedChange(tx, account),
		NodeIndex:    node.Index,
		LedgerIndex:  tx.LedgerIndex,
		TxIndex:      tx.TxIndex,
		TxHash:       tx.Hash,
		ExecutedAt:   tx.ExecutedAt,
	}
	return []BalanceChange{change}, true
}

func classifyNativeChange(tx *ledger.Transaction, account string) string {
	switch tx.Type {
	case "Payment":
		return classifyPaymentParty(tx, account)
	case "OfferCreate", "OfferCancel":
		return ChangeExchange
	default:
		return ChangeIntermediary
	}
}

func classifyIssuedChange(tx *ledger.Transaction, account string) string {
	switch tx.Type {
	case "Payment":
		return classifyPaymentParty(tx, account)
	case "OfferCreate", "OfferCancel":
		return ChangeExchange
	default:
		return ChangeIntermediary
	}
}

func classifyPaymentParty(tx *ledger.Transaction, account string) string {
	destination, _ := tx.Tx["Destination"].(string)
	switch account {
	case tx.Account:
		return ChangePaymentSource
	case destination:
		return ChangePaymentDestination
	default:
		return ChangeIntermediary
	}
}
