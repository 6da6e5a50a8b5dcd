package parser

import (
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"unicode/utf8"

	"github.com/LeJamon/xrplhist/internal/ledger"
)

var (
	hexPattern    = regexp.MustCompile(`^(?:[0-9A-Fa-f]{2})+$`)
	base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)
)

// memos extracts and opportunistically decodes the memos attached to a
// transaction. Decoding is best effort: fields that match a hex or base64
// shape are decoded to text when the result is valid UTF-8; anything else
// keeps only its raw form. A failed decode is not an error.
func memos(tx *ledger.Transaction) []Memo {
	wrappers, _ := tx.Tx["Memos"].([]any)
	if len(wrappers) == 0 {
		return nil
	}
	destination, _ := tx.Tx["Destination"].(string)

	var out []Memo
	for i, wrapper := range wrappers {
		w, ok := wrapper.(map[string]any)
		if !ok {
			continue
		}
		inner, ok := w["Memo"].(map[string]any)
		if !ok {
			continue
		}

		m := Memo{
			Account:     tx.Account,
			Destination: destination,
			MemoIndex:   i,
			LedgerIndex: tx.LedgerIndex,
			TxIndex:     tx.TxIndex,
			TxHash:      tx.Hash,
			ExecutedAt:  tx.ExecutedAt,
		}
		m.MemoType, _ = inner["MemoType"].(string)
		m.MemoData, _ = inner["MemoData"].(string)
		m.MemoFormat, _ = inner["MemoFormat"].(string)

		m.DecodedType = decodeMemoField(m.MemoType)
		m.DecodedData = decodeMemoField(m.MemoData)
		m.DecodedFormat = decodeMemoField(m.MemoFormat)
		out = append(out, m)
	}
	return out
}

// decodeMemoField tries hex first (the on-ledger encoding), then base64,
// and returns "" when neither produces printable text.
func decodeMemoField(raw string) string {
	if raw == "" {
		return ""
	}
	if hexPattern.MatchString(raw) {
		if decoded, err := hex.DecodeString(raw); err == nil {
			if text, ok := printable(decoded); ok {
				return text
			}
		}
	}
	if base64Pattern.MatchString(raw) && len(raw)%4 == 0 {
		if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
			if text, ok := printable(decoded); ok {
				return text
			}
		}
	}
	return ""
}

func printable(b []byte) (string, bool) {
	if !utf8.Valid(b) {
		return "", false
	}
	for _, c := range string(b) {
		if c < 0x20 && c != '\t' && c != '\n' && c != '\r' {
			return "", false
		}
	}
	return string(b), true
}
