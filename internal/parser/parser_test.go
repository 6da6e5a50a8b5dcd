package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/xrplhist/internal/ledger"
	"github.com/LeJamon/xrplhist/internal/types"
)

const (
	sender     = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	receiver   = "rrrrrrrrrrrrrrrrrrrrBZbvji"
	offerOwner = "rrrrrrrrrrrrrrrrrrrrrhoLvTp"

	ledgerIdx = uint32(1234)
)

func newTx(t *testing.T, txType, result string, txFields, meta map[string]any) *ledger.Transaction {
	t.Helper()
	tx := &ledger.Transaction{
		Hash:        types.Hash256FromData([]byte(txType + result)),
		LedgerIndex: ledgerIdx,
		TxIndex:     0,
		Type:        txType,
		Account:     sender,
		Sequence:    42,
		Result:      result,
		Fee:         "12",
		Tx:          txFields,
		Meta:        meta,
		ExecutedAt:  time.Date(2015, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if tx.Tx == nil {
		tx.Tx = map[string]any{}
	}
	tx.Tx["TransactionType"] = txType
	tx.Tx["Account"] = sender
	if tx.Meta == nil {
		tx.Meta = map[string]any{}
	}
	tx.Meta["TransactionResult"] = result
	tx.Meta["TransactionIndex"] = uint32(0)
	if _, ok := tx.Meta["AffectedNodes"]; !ok {
		tx.Meta["AffectedNodes"] = []any{}
	}
	return tx
}

func accountRootNode(kind, account, finalBalance, prevBalance string) map[string]any {
	inner := map[string]any{
		"LedgerEntryType": "AccountRoot",
	}
	final := map[string]any{
		"Account": account,
		"Balance": finalBalance,
	}
	if kind == "CreatedNode" {
		inner["NewFields"] = final
	} else {
		inner["FinalFields"] = final
		prev := map[string]any{}
		if prevBalance != "" {
			prev["Balance"] = prevBalance
		}
		inner["PreviousFields"] = prev
	}
	return map[string]any{kind: inner}
}

func offerNode(owner string, finalPays, finalGets, prevPays, prevGets any) map[string]any {
	return map[string]any{
		"ModifiedNode": map[string]any{
			"LedgerEntryType": "Offer",
			"FinalFields": map[string]any{
				"Account":   owner,
				"Sequence":  uint32(77),
				"TakerPays": finalPays,
				"TakerGets": finalGets,
			},
			"PreviousFields": map[string]any{
				"TakerPays": prevPays,
				"TakerGets": prevGets,
			},
		},
	}
}

func iou(value, currency, issuer string) map[string]any {
	return map[string]any{"value": value, "currency": currency, "issuer": issuer}
}

func TestFeeAndExchangeDecomposition(t *testing.T) {
	// One order-book-crossing Offer node plus the sender's AccountRoot fee
	// node must yield exactly one Exchange and one network fee change of
	// -fee/10^6.
	meta := map[string]any{
		"AffectedNodes": []any{
			// Sender pays 12 drops fee, balance otherwise untouched.
			accountRootNode("ModifiedNode", sender, "99999988", "100000000"),
			// Offer partially consumed: 10 USD traded for 20 XRP.
			offerNode(offerOwner,
				iou("90", "USD", receiver), "180000000",
				iou("100", "USD", receiver), "200000000"),
		},
	}
	tx := newTx(t, "OfferCreate", "tesSUCCESS", map[string]any{
		"TakerPays": iou("100", "USD", receiver),
		"TakerGets": "200000000",
	}, meta)

	parsed, err := Parse(tx)
	require.NoError(t, err)

	require.Len(t, parsed.Exchanges, 1)
	ex := parsed.Exchanges[0]
	// usd.<issuer> sorts before xrp, so USD stays base.
	assert.Equal(t, "USD", ex.Base.Currency)
	assert.Equal(t, "XRP", ex.Counter.Currency)
	assert.Equal(t, "10", ex.BaseAmount)
	assert.Equal(t, "20", ex.CounterAmount)
	assert.Equal(t, "2", ex.Rate)
	assert.Equal(t, 1, ex.NodeIndex)

	var feeChanges []BalanceChange
	for _, c := range parsed.BalanceChanges {
		if c.ChangeType == ChangeNetworkFee {
			feeChanges = append(feeChanges, c)
		}
	}
	require.Len(t, feeChanges, 1)
	assert.Equal(t, "-0.000012", feeChanges[0].Change)
	assert.Equal(t, FeeNodeIndex, feeChanges[0].NodeIndex)
	assert.Equal(t, sender, feeChanges[0].Account)
}

func TestFeeNettedOutOfPrincipal(t *testing.T) {
	// Sender receives 5 XRP while paying the 12 drop fee in the same node:
	// the principal change must exclude the fee.
	meta := map[string]any{
		"AffectedNodes": []any{
			accountRootNode("ModifiedNode", sender, "104999988", "100000000"),
		},
	}
	tx := newTx(t, "OfferCreate", "tesSUCCESS", nil, meta)

	parsed, err := Parse(tx)
	require.NoError(t, err)
	require.Len(t, parsed.BalanceChanges, 2)

	byType := map[string]BalanceChange{}
	for _, c := range parsed.BalanceChanges {
		byType[c.ChangeType] = c
	}
	assert.Equal(t, "-0.000012", byType[ChangeNetworkFee].Change)
	assert.Equal(t, "5", byType[ChangeExchange].Change)
}

func TestCanonicalPairOrderingSwapsEverythingTogether(t *testing.T) {
	// Base xrp vs counter USD: "xrp" > "usd..." so the pair must flip:
	// base/counter amounts, buyer/seller and the rate all invert at once.
	meta := map[string]any{
		"AffectedNodes": []any{
			offerNode(offerOwner,
				"180000000", iou("90", "USD", receiver),
				"200000000", iou("100", "USD", receiver)),
		},
	}
	tx := newTx(t, "OfferCreate", "tesSUCCESS", nil, meta)

	parsed, err := Parse(tx)
	require.NoError(t, err)
	require.Len(t, parsed.Exchanges, 1)
	ex := parsed.Exchanges[0]

	assert.Equal(t, "USD", ex.Base.Currency)
	assert.Equal(t, "XRP", ex.Counter.Currency)
	assert.Equal(t, "10", ex.BaseAmount)
	assert.Equal(t, "20", ex.CounterAmount)
	assert.Equal(t, "2", ex.Rate)
	// Roles flipped with the assets.
	assert.Equal(t, sender, ex.Buyer)
	assert.Equal(t, offerOwner, ex.Seller)
}

func TestAccountCreated(t *testing.T) {
	meta := map[string]any{
		"AffectedNodes": []any{
			accountRootNode("CreatedNode", receiver, "20000000", ""),
		},
	}
	tx := newTx(t, "Payment", "tesSUCCESS", map[string]any{
		"Destination": receiver,
		"Amount":      "20000000",
	}, meta)

	parsed, err := Parse(tx)
	require.NoError(t, err)
	require.Len(t, parsed.AccountsCreated, 1)
	created := parsed.AccountsCreated[0]
	assert.Equal(t, receiver, created.Account)
	assert.Equal(t, sender, created.Parent)
	assert.Equal(t, "20", created.Balance)
}

func TestRippleStateSignSwap(t *testing.T) {
	// Negative balance means the low account owes the high account, so the
	// reported account/issuer roles swap and the delta negates.
	meta := map[string]any{
		"AffectedNodes": []any{
			map[string]any{
				"ModifiedNode": map[string]any{
					"LedgerEntryType": "RippleState",
					"FinalFields": map[string]any{
						"Balance":   iou("-75", "USD", "rrrrrrrrrrrrrrrrrrrrrhoLvTp"),
						"LowLimit":  iou("0", "USD", sender),
						"HighLimit": iou("100", "USD", receiver),
					},
					"PreviousFields": map[string]any{
						"Balance": iou("-50", "USD", "rrrrrrrrrrrrrrrrrrrrrhoLvTp"),
					},
				},
			},
		},
	}
	tx := newTx(t, "Payment", "tesSUCCESS", map[string]any{
		"Destination": receiver,
		"Amount":      iou("25", "USD", sender),
	}, meta)

	parsed, err := Parse(tx)
	require.NoError(t, err)
	require.Len(t, parsed.BalanceChanges, 1)
	c := parsed.BalanceChanges[0]
	assert.Equal(t, receiver, c.Account, "high account holds the credit")
	assert.Equal(t, sender, c.Asset.Issuer)
	assert.Equal(t, "25", c.Change)
	assert.Equal(t, "75", c.FinalBalance)
	assert.Equal(t, ChangePaymentDestination, c.ChangeType)
}

func TestSelfPaymentExcluded(t *testing.T) {
	// A payment to self crosses the book but is not a Payment event.
	meta := map[string]any{
		"AffectedNodes": []any{
			offerNode(offerOwner,
				iou("90", "USD", receiver), "180000000",
				iou("100", "USD", receiver), "200000000"),
		},
	}
	tx := newTx(t, "Payment", "tesSUCCESS", map[string]any{
		"Destination": sender,
		"Amount":      iou("10", "USD", receiver),
	}, meta)

	parsed, err := Parse(tx)
	require.NoError(t, err)
	assert.Empty(t, parsed.Payments)
	assert.Len(t, parsed.Exchanges, 1)
}

func TestPaymentSynthesis(t *testing.T) {
	meta := map[string]any{
		"AffectedNodes": []any{
			accountRootNode("ModifiedNode", sender, "89999988", "100000000"),
			accountRootNode("ModifiedNode", receiver, "30000000", "20000000"),
		},
	}
	tx := newTx(t, "Payment", "tesSUCCESS", map[string]any{
		"Destination":    receiver,
		"Amount":         "10000000",
		"DestinationTag": uint32(99),
	}, meta)

	parsed, err := Parse(tx)
	require.NoError(t, err)
	require.Len(t, parsed.Payments, 1)
	p := parsed.Payments[0]
	assert.Equal(t, sender, p.Source)
	assert.Equal(t, receiver, p.Destination)
	assert.Equal(t, "10", p.Amount)
	assert.Equal(t, "10", p.DeliveredAmount)
	assert.Equal(t, "0.000012", p.Fee)
	assert.Equal(t, uint32(99), p.DestinationTag)

	require.Len(t, p.SourceBalanceChanges, 1)
	assert.Equal(t, "-10", p.SourceBalanceChanges[0].Value)
	require.Len(t, p.DestinationBalanceChanges, 1)
	assert.Equal(t, "10", p.DestinationBalanceChanges[0].Value)
}

func TestFailedTransactionProducesNoEconomicEvents(t *testing.T) {
	meta := map[string]any{
		"AffectedNodes": []any{
			accountRootNode("ModifiedNode", sender, "99999988", "100000000"),
			offerNode(offerOwner,
				iou("90", "USD", receiver), "180000000",
				iou("100", "USD", receiver), "200000000"),
		},
	}
	tx := newTx(t, "OfferCreate", "temBAD_OFFER", nil, meta)

	parsed, err := Parse(tx)
	require.NoError(t, err)
	assert.Empty(t, parsed.Exchanges)
	assert.Empty(t, parsed.Payments)
	assert.Empty(t, parsed.BalanceChanges)
	assert.Empty(t, parsed.AccountsCreated)
	// Still indexed.
	assert.NotEmpty(t, parsed.AffectedAccounts)
}

func TestTecClassStillChargesFee(t *testing.T) {
	meta := map[string]any{
		"AffectedNodes": []any{
			accountRootNode("ModifiedNode", sender, "99999988", "100000000"),
		},
	}
	tx := newTx(t, "OfferCreate", "tecUNFUNDED_OFFER", nil, meta)

	parsed, err := Parse(tx)
	require.NoError(t, err)
	require.Len(t, parsed.BalanceChanges, 1)
	assert.Equal(t, ChangeNetworkFee, parsed.BalanceChanges[0].ChangeType)
	assert.Empty(t, parsed.Exchanges)
}

func TestAffectedAccounts(t *testing.T) {
	meta := map[string]any{
		"AffectedNodes": []any{
			accountRootNode("ModifiedNode", sender, "99999988", "100000000"),
			accountRootNode("ModifiedNode", receiver, "30000000", "20000000"),
			offerNode(offerOwner,
				iou("90", "USD", receiver), "180000000",
				iou("100", "USD", receiver), "200000000"),
		},
	}
	tx := newTx(t, "Payment", "tesSUCCESS", map[string]any{
		"Destination": receiver,
		"Amount":      "10000000",
	}, meta)

	parsed, err := Parse(tx)
	require.NoError(t, err)

	accounts := make([]string, 0, len(parsed.AffectedAccounts))
	for _, a := range parsed.AffectedAccounts {
		accounts = append(accounts, a.Account)
		assert.Equal(t, "Payment", a.TxType)
		assert.Equal(t, "tesSUCCESS", a.TxResult)
		assert.Equal(t, ledgerIdx, a.LedgerIndex)
	}
	assert.ElementsMatch(t, []string{sender, receiver, offerOwner}, accounts)
}

func TestParseRejectsUnprepared(t *testing.T) {
	_, err := Parse(&ledger.Transaction{})
	assert.ErrorIs(t, err, ErrNotPrepared)
}
