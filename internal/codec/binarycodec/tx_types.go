package binarycodec

import "fmt"

// Transaction type codes, keyed by their canonical names.
var txTypeByName = map[string]uint16{
	"Payment":              0,
	"EscrowCreate":         1,
	"EscrowFinish":         2,
	"AccountSet":           3,
	"EscrowCancel":         4,
	"SetRegularKey":        5,
	"OfferCreate":          7,
	"OfferCancel":          8,
	"TicketCreate":         10,
	"SignerListSet":        12,
	"PaymentChannelCreate": 13,
	"PaymentChannelFund":   14,
	"PaymentChannelClaim":  15,
	"CheckCreate":          16,
	"CheckCash":            17,
	"CheckCancel":          18,
	"DepositPreauth":       19,
	"TrustSet":             20,
	"AccountDelete":        21,
	"EnableAmendment":      100,
	"SetFee":               101,
	"UNLModify":            102,
}

// Ledger entry type codes. The values are the ASCII space keys rippled uses.
var ledgerEntryTypeByName = map[string]uint16{
	"AccountRoot":    0x0061,
	"DirectoryNode":  0x0064,
	"Amendments":     0x0066,
	"LedgerHashes":   0x0068,
	"Offer":          0x006F,
	"DepositPreauth": 0x0070,
	"RippleState":    0x0072,
	"FeeSettings":    0x0073,
	"Escrow":         0x0075,
	"PayChannel":     0x0078,
	"Check":          0x0043,
	"SignerList":     0x0053,
	"Ticket":         0x0054,
}

var txTypeNameByCode = invertUint16(txTypeByName)
var ledgerEntryNameByCode = invertUint16(ledgerEntryTypeByName)

func invertUint16(m map[string]uint16) map[uint16]string {
	out := make(map[uint16]string, len(m))
	for name, code := range m {
		out[code] = name
	}
	return out
}

// TxTypeFromName maps a transaction type name to its wire code.
func TxTypeFromName(name string) (uint16, error) {
	code, ok := txTypeByName[name]
	if !ok {
		return 0, fmt.Errorf("%w: transaction type %s", ErrBadValue, name)
	}
	return code, nil
}

// TxTypeName maps a wire code back to the transaction type name.
func TxTypeName(code uint16) (string, error) {
	name, ok := txTypeNameByCode[code]
	if !ok {
		return "", fmt.Errorf("%w: transaction type %d", ErrBadValue, code)
	}
	return name, nil
}
