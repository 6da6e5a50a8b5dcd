package parser

import "github.com/LeJamon/xrplhist/internal/ledger"

// payment synthesizes the aggregated Payment event from a successful
// Payment transaction and the balance changes already extracted for it.
// Self-payments (source == destination, used purely to cross the order
// book) produce no Payment event; their exchanges are reported separately.
func payment(tx *ledger.Transaction, changes []BalanceChange) *Payment {
	if tx.Type != "Payment" || !tx.Successful() {
		return nil
	}

	destination, _ := tx.Tx["Destination"].(string)
	if destination == "" || destination == tx.Account {
		return nil
	}

	asset, amount, err := amountValue(tx.Tx["Amount"])
	if err != nil {
		return nil
	}

	p := &Payment{
		Source:      tx.Account,
		Destination: destination,
		Asset:       asset,
		Amount:      ratString(amount),
		LedgerIndex: tx.LedgerIndex,
		TxIndex:     tx.TxIndex,
		TxHash:      tx.Hash,
		ExecutedAt:  tx.ExecutedAt,
	}

	// Delivered amount: the explicit metadata field wins; partial payment
	// flags make the declared Amount an upper bound only.
	if delivered, ok := tx.Meta["delivered_amount"]; ok {
		if _, v, err := amountValue(delivered); err == nil {
			p.DeliveredAmount = ratString(v)
		}
	} else if delivered, ok := tx.Meta["DeliveredAmount"]; ok {
		if _, v, err := amountValue(delivered); err == nil {
			p.DeliveredAmount = ratString(v)
		}
	} else {
		p.DeliveredAmount = p.Amount
	}

	if sendMax, ok := tx.Tx["SendMax"]; ok {
		if _, v, err := amountValue(sendMax); err == nil {
			p.MaxAmount = ratString(v)
		}
	}
	if fee, err := dropsValue(tx.Fee); err == nil {
		p.Fee = ratString(fee)
	}
	if tag, ok := tx.Tx["SourceTag"].(uint32); ok {
		p.SourceTag = tag
	}
	if tag, ok := tx.Tx["DestinationTag"].(uint32); ok {
		p.DestinationTag = tag
	}

	for _, c := range changes {
		if c.ChangeType == ChangeNetworkFee {
			continue
		}
		delta := AmountDelta{Asset: c.Asset, Value: c.Change}
		switch c.Account {
		case p.Source:
			p.SourceBalanceChanges = append(p.SourceBalanceChanges, delta)
		case p.Destination:
			p.DestinationBalanceChanges = append(p.DestinationBalanceChanges, delta)
		}
	}
	return p
}
