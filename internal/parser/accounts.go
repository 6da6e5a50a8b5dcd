package parser

import (
	"sort"

	"github.com/LeJamon/xrplhist/internal/codec/addresscodec"
	"github.com/LeJamon/xrplhist/internal/ledger"
)

// affectedAccounts emits one index entry per account referenced by the
// transaction or its metadata, so "all transactions touching account X"
// is a single range scan.
func affectedAccounts(tx *ledger.Transaction, nodes []affectedNode) []AffectedAccount {
	seen := make(map[string]struct{})
	add := func(addr string) {
		if addr == "" {
			return
		}
		if _, ok := seen[addr]; ok {
			return
		}
		if !addresscodec.IsValidAddress(addr) {
			return
		}
		seen[addr] = struct{}{}
	}

	add(tx.Account)
	if dest, ok := tx.Tx["Destination"].(string); ok {
		add(dest)
	}

	for _, node := range nodes {
		collectAccounts(node.Final, add)
		collectAccounts(node.Previous, add)
	}

	accounts := make([]string, 0, len(seen))
	for addr := range seen {
		accounts = append(accounts, addr)
	}
	sort.Strings(accounts)

	out := make([]AffectedAccount, 0, len(accounts))
	for _, addr := range accounts {
		out = append(out, AffectedAccount{
			Account:     addr,
			TxType:      tx.Type,
			TxResult:    tx.Result,
			LedgerIndex: tx.LedgerIndex,
			TxIndex:     tx.TxIndex,
			TxHash:      tx.Hash,
			ExecutedAt:  tx.ExecutedAt,
		})
	}
	return out
}

// collectAccounts pulls addresses out of the fields where they appear in
// state nodes: direct account fields and the issuers of amount objects.
func collectAccounts(fields map[string]any, add func(string)) {
	if fields == nil {
		return
	}
	for name, v := range fields {
		switch name {
		case "Account", "Destination", "Owner", "RegularKey":
			if addr, ok := v.(string); ok {
				add(addr)
			}
		default:
			if amt, ok := v.(map[string]any); ok {
				if issuer, ok := amt["issuer"].(string); ok {
					add(issuer)
				}
			}
		}
	}
}
