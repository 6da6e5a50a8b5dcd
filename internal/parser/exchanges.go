package parser

import (
	"math/big"

	"github.com/LeJamon/xrplhist/internal/ledger"
)

// exchanges derives one Exchange per consumed order book entry: a Modified
// or Deleted Offer node whose previous fields carry both TakerPays and
// TakerGets. The traded amounts are the before/after differences of those
// two fields.
func exchanges(tx *ledger.Transaction, nodes []affectedNode) []Exchange {
	var out []Exchange
	for _, node := range nodes {
		if node.Entry != "Offer" || node.created() {
			continue
		}
		if node.Previous == nil {
			continue
		}
		prevPays, hasPays := node.Previous["TakerPays"]
		prevGets, hasGets := node.Previous["TakerGets"]
		if !hasPays || !hasGets {
			continue
		}

		ex, ok := offerExchange(tx, node, prevPays, prevGets)
		if !ok {
			continue
		}
		out = append(out, ex)
	}
	return out
}

func offerExchange(tx *ledger.Transaction, node affectedNode, prevPays, prevGets any) (Exchange, bool) {
	basAsset, prevPaysVal, err := amountValue(prevPays)
	if err != nil {
		return Exchange{}, false
	}
	ctrAsset, prevGetsVal, err := amountValue(prevGets)
	if err != nil {
		return Exchange{}, false
	}
	_, finalPaysVal, err := amountValue(node.Final["TakerPays"])
	if err != nil {
		return Exchange{}, false
	}
	_, finalGetsVal, err := amountValue(node.Final["TakerGets"])
	if err != nil {
		return Exchange{}, false
	}

	// Interest-bearing assets are compared at their execution-time worth;
	// otherwise accrued demurrage would be mistaken for traded volume.
	prevPaysVal = adjustForInterest(basAsset, prevPaysVal, tx.ExecutedAt)
	finalPaysVal = adjustForInterest(basAsset, finalPaysVal, tx.ExecutedAt)
	prevGetsVal = adjustForInterest(ctrAsset, prevGetsVal, tx.ExecutedAt)
	finalGetsVal = adjustForInterest(ctrAsset, finalGetsVal, tx.ExecutedAt)

	baseAmount := new(big.Rat).Sub(prevPaysVal, finalPaysVal)
	counterAmount := new(big.Rat).Sub(prevGetsVal, finalGetsVal)
	if baseAmount.Sign() <= 0 || counterAmount.Sign() <= 0 {
		return Exchange{}, false
	}

	rate := new(big.Rat).Quo(counterAmount, baseAmount)

	owner := node.finalString("Account")
	var offerSeq uint32
	if seq, ok := node.Final["Sequence"].(uint32); ok {
		offerSeq = seq
	}

	ex := Exchange{
		Base:          basAsset,
		Counter:       ctrAsset,
		BaseAmount:    ratString(baseAmount),
		CounterAmount: ratString(counterAmount),
		Rate:          ratString(rate),
		Buyer:         owner,
		Seller:        tx.Account,
		Taker:         tx.Account,
		OfferSequence: offerSeq,
		LedgerIndex:   tx.LedgerIndex,
		TxIndex:       tx.TxIndex,
		NodeIndex:     node.Index,
		TxHash:        tx.Hash,
		ExecutedAt:    tx.ExecutedAt,
	}
	canonicalize(&ex, baseAmount, counterAmount)
	return ex, true
}

// canonicalize enforces the documented pair ordering: the two assets are
// compared as lowercase "currency.issuer" keys (native XRP is "xrp") and
// base must sort first. When they are out of order the base/counter
// amounts, buyer/seller and the rate all flip together, never partially.
func canonicalize(ex *Exchange, baseAmount, counterAmount *big.Rat) {
	if ex.Base.Key() <= ex.Counter.Key() {
		return
	}
	ex.Base, ex.Counter = ex.Counter, ex.Base
	ex.BaseAmount, ex.CounterAmount = ex.CounterAmount, ex.BaseAmount
	ex.Buyer, ex.Seller = ex.Seller, ex.Buyer

	inverted := new(big.Rat).Quo(baseAmount, counterAmount)
	ex.Rate = ratString(inverted)
}
