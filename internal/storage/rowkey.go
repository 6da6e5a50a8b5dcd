package storage

import (
	"fmt"
	"strings"
	"time"
)

// Rowkeys are pipe-joined component strings with fixed-width numeric
// fields, so lexicographic key order matches logical order and common
// queries ("this account's payments in March") are one contiguous scan.

// KeySep joins rowkey components.
const KeySep = "|"

// Key joins components into a composite rowkey.
func Key(parts ...string) string {
	return strings.Join(parts, KeySep)
}

// SplitKey splits a composite rowkey back into components.
func SplitKey(key string) []string {
	return strings.Split(key, KeySep)
}

// PadIndex renders a ledger index or sequence with fixed width so numeric
// and lexicographic order agree.
func PadIndex(v uint32) string {
	return fmt.Sprintf("%010d", v)
}

// PadOffset renders a small intra-transaction position (tx index, node
// index, memo index).
func PadOffset(v int) string {
	return fmt.Sprintf("%05d", v)
}

// TimeKey renders a timestamp as a sortable UTC component.
func TimeKey(t time.Time) string {
	return t.UTC().Format("20060102150405")
}

// PrefixEnd returns the exclusive upper bound for scanning every key that
// starts with prefix. 0x7E sorts after every character the key alphabet
// uses, including the pipe separator.
func PrefixEnd(prefix string) string {
	return prefix + "\x7e"
}
