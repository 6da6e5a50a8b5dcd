package ledger

import (
	"fmt"
	"sort"

	binarycodec "github.com/LeJamon/xrplhist/internal/codec/binarycodec"
	"github.com/LeJamon/xrplhist/internal/types"
)

// TxSetHash computes the transaction-set digest of a ledger from prepared
// transactions: an ordered Merkle tree whose leaves are the namespaced
// hashes of each VL-framed transaction-plus-metadata blob keyed by the
// transaction ID. The same function is used at ingest time and by the
// hash-chain validator, so a stored ledger can always be re-verified from
// its rows alone.
func TxSetHash(txs []*Transaction) (types.Hash256, error) {
	if len(txs) == 0 {
		return types.ZeroHash256, nil
	}

	ordered := make([]*Transaction, len(txs))
	copy(ordered, txs)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].TxIndex < ordered[j].TxIndex
	})

	level := make([]types.Hash256, 0, len(ordered))
	for _, tx := range ordered {
		leaf, err := txLeafHash(tx)
		if err != nil {
			return types.ZeroHash256, fmt.Errorf("tx %s: %w", tx.Hash, err)
		}
		level = append(level, leaf)
	}

	for len(level) > 1 {
		next := make([]types.Hash256, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				// Odd node promotes unchanged.
				next = append(next, level[i])
				continue
			}
			next = append(next, binarycodec.PrefixedHash(
				binarycodec.HashPrefixInnerNode,
				level[i][:], level[i+1][:],
			))
		}
		level = next
	}
	return level[0], nil
}

// txLeafHash hashes one transaction tree leaf:
// Sha512Half(SND || VL(tx) || VL(meta) || txid).
func txLeafHash(tx *Transaction) (types.Hash256, error) {
	if len(tx.Raw) == 0 {
		return types.ZeroHash256, fmt.Errorf("transaction not prepared")
	}
	vlTx, err := binarycodec.EncodeWithVL(tx.Raw)
	if err != nil {
		return types.ZeroHash256, err
	}
	vlMeta, err := binarycodec.EncodeWithVL(tx.MetaRaw)
	if err != nil {
		return types.ZeroHash256, err
	}
	return binarycodec.PrefixedHash(binarycodec.HashPrefixTxNode, vlTx, vlMeta, tx.Hash[:]), nil
}
