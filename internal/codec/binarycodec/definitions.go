package binarycodec

import "fmt"

// Serialized type codes from the XRPL binary format.
const (
	stUInt16    = 1
	stUInt32    = 2
	stUInt64    = 3
	stHash128   = 4
	stHash256   = 5
	stAmount    = 6
	stBlob      = 7
	stAccountID = 8
	stObject    = 14
	stArray     = 15
	stUInt8     = 16
	stHash160   = 17
	stVector256 = 19
)

// End markers for nested containers.
const (
	objectEndMarker byte = 0xE1
	arrayEndMarker  byte = 0xF1
)

// FieldHeader identifies a field on the wire.
type FieldHeader struct {
	TypeCode  int32
	FieldCode int32
}

// FieldInstance is a field definition from the canonical schema.
type FieldInstance struct {
	Name        string
	Header      FieldHeader
	IsVLEncoded bool
}

// fieldsByName is the canonical field schema. Ordering on the wire is
// (TypeCode, FieldCode) ascending, never map iteration order.
var fieldsByName = map[string]FieldInstance{
	// UInt8
	"CloseResolution":   {Name: "CloseResolution", Header: FieldHeader{stUInt8, 1}},
	"Method":            {Name: "Method", Header: FieldHeader{stUInt8, 2}},
	"TransactionResult": {Name: "TransactionResult", Header: FieldHeader{stUInt8, 3}},
	"TickSize":          {Name: "TickSize", Header: FieldHeader{stUInt8, 16}},

	// UInt16
	"LedgerEntryType": {Name: "LedgerEntryType", Header: FieldHeader{stUInt16, 1}},
	"TransactionType": {Name: "TransactionType", Header: FieldHeader{stUInt16, 2}},

	// UInt32
	"NetworkID":           {Name: "NetworkID", Header: FieldHeader{stUInt32, 1}},
	"Flags":               {Name: "Flags", Header: FieldHeader{stUInt32, 2}},
	"SourceTag":           {Name: "SourceTag", Header: FieldHeader{stUInt32, 3}},
	"Sequence":            {Name: "Sequence", Header: FieldHeader{stUInt32, 4}},
	"PreviousTxnLgrSeq":   {Name: "PreviousTxnLgrSeq", Header: FieldHeader{stUInt32, 5}},
	"LedgerSequence":      {Name: "LedgerSequence", Header: FieldHeader{stUInt32, 6}},
	"CloseTime":           {Name: "CloseTime", Header: FieldHeader{stUInt32, 7}},
	"ParentCloseTime":     {Name: "ParentCloseTime", Header: FieldHeader{stUInt32, 8}},
	"SigningTime":         {Name: "SigningTime", Header: FieldHeader{stUInt32, 9}},
	"Expiration":          {Name: "Expiration", Header: FieldHeader{stUInt32, 10}},
	"TransferRate":        {Name: "TransferRate", Header: FieldHeader{stUInt32, 11}},
	"WalletSize":          {Name: "WalletSize", Header: FieldHeader{stUInt32, 12}},
	"OwnerCount":          {Name: "OwnerCount", Header: FieldHeader{stUInt32, 13}},
	"DestinationTag":      {Name: "DestinationTag", Header: FieldHeader{stUInt32, 14}},
	"HighQualityIn":       {Name: "HighQualityIn", Header: FieldHeader{stUInt32, 16}},
	"HighQualityOut":      {Name: "HighQualityOut", Header: FieldHeader{stUInt32, 17}},
	"LowQualityIn":        {Name: "LowQualityIn", Header: FieldHeader{stUInt32, 18}},
	"LowQualityOut":       {Name: "LowQualityOut", Header: FieldHeader{stUInt32, 19}},
	"QualityIn":           {Name: "QualityIn", Header: FieldHeader{stUInt32, 20}},
	"QualityOut":          {Name: "QualityOut", Header: FieldHeader{stUInt32, 21}},
	"OfferSequence":       {Name: "OfferSequence", Header: FieldHeader{stUInt32, 25}},
	"FirstLedgerSequence": {Name: "FirstLedgerSequence", Header: FieldHeader{stUInt32, 26}},
	"LastLedgerSequence":  {Name: "LastLedgerSequence", Header: FieldHeader{stUInt32, 27}},
	"TransactionIndex":    {Name: "TransactionIndex", Header: FieldHeader{stUInt32, 28}},
	"ReserveBase":         {Name: "ReserveBase", Header: FieldHeader{stUInt32, 31}},
	"ReserveIncrement":    {Name: "ReserveIncrement", Header: FieldHeader{stUInt32, 32}},
	"SetFlag":             {Name: "SetFlag", Header: FieldHeader{stUInt32, 33}},
	"ClearFlag":           {Name: "ClearFlag", Header: FieldHeader{stUInt32, 34}},
	"SignerQuorum":        {Name: "SignerQuorum", Header: FieldHeader{stUInt32, 35}},
	"CancelAfter":         {Name: "CancelAfter", Header: FieldHeader{stUInt32, 36}},
	"FinishAfter":         {Name: "FinishAfter", Header: FieldHeader{stUInt32, 37}},
	"SettleDelay":         {Name: "SettleDelay", Header: FieldHeader{stUInt32, 39}},

	// UInt64
	"IndexNext":       {Name: "IndexNext", Header: FieldHeader{stUInt64, 1}},
	"IndexPrevious":   {Name: "IndexPrevious", Header: FieldHeader{stUInt64, 2}},
	"BookNode":        {Name: "BookNode", Header: FieldHeader{stUInt64, 3}},
	"OwnerNode":       {Name: "OwnerNode", Header: FieldHeader{stUInt64, 4}},
	"BaseFee":         {Name: "BaseFee", Header: FieldHeader{stUInt64, 5}},
	"ExchangeRate":    {Name: "ExchangeRate", Header: FieldHeader{stUInt64, 6}},
	"LowNode":         {Name: "LowNode", Header: FieldHeader{stUInt64, 7}},
	"HighNode":        {Name: "HighNode", Header: FieldHeader{stUInt64, 8}},
	"DestinationNode": {Name: "DestinationNode", Header: FieldHeader{stUInt64, 9}},

	// Hash128
	"EmailHash": {Name: "EmailHash", Header: FieldHeader{stHash128, 1}},

	// Hash256
	"LedgerHash":      {Name: "LedgerHash", Header: FieldHeader{stHash256, 1}},
	"ParentHash":      {Name: "ParentHash", Header: FieldHeader{stHash256, 2}},
	"TransactionHash": {Name: "TransactionHash", Header: FieldHeader{stHash256, 3}},
	"AccountHash":     {Name: "AccountHash", Header: FieldHeader{stHash256, 4}},
	"PreviousTxnID":   {Name: "PreviousTxnID", Header: FieldHeader{stHash256, 5}},
	"LedgerIndex":     {Name: "LedgerIndex", Header: FieldHeader{stHash256, 6}},
	"WalletLocator":   {Name: "WalletLocator", Header: FieldHeader{stHash256, 7}},
	"RootIndex":       {Name: "RootIndex", Header: FieldHeader{stHash256, 8}},
	"AccountTxnID":    {Name: "AccountTxnID", Header: FieldHeader{stHash256, 9}},
	"BookDirectory":   {Name: "BookDirectory", Header: FieldHeader{stHash256, 16}},
	"InvoiceID":       {Name: "InvoiceID", Header: FieldHeader{stHash256, 17}},
	"Channel":         {Name: "Channel", Header: FieldHeader{stHash256, 22}},

	// Amount
	"Amount":          {Name: "Amount", Header: FieldHeader{stAmount, 1}},
	"Balance":         {Name: "Balance", Header: FieldHeader{stAmount, 2}},
	"LimitAmount":     {Name: "LimitAmount", Header: FieldHeader{stAmount, 3}},
	"TakerPays":       {Name: "TakerPays", Header: FieldHeader{stAmount, 4}},
	"TakerGets":       {Name: "TakerGets", Header: FieldHeader{stAmount, 5}},
	"LowLimit":        {Name: "LowLimit", Header: FieldHeader{stAmount, 6}},
	"HighLimit":       {Name: "HighLimit", Header: FieldHeader{stAmount, 7}},
	"Fee":             {Name: "Fee", Header: FieldHeader{stAmount, 8}},
	"SendMax":         {Name: "SendMax", Header: FieldHeader{stAmount, 9}},
	"DeliverMin":      {Name: "DeliverMin", Header: FieldHeader{stAmount, 10}},
	"DeliveredAmount": {Name: "DeliveredAmount", Header: FieldHeader{stAmount, 18}},

	// Blob (VL encoded)
	"PublicKey":     {Name: "PublicKey", Header: FieldHeader{stBlob, 1}, IsVLEncoded: true},
	"MessageKey":    {Name: "MessageKey", Header: FieldHeader{stBlob, 2}, IsVLEncoded: true},
	"SigningPubKey": {Name: "SigningPubKey", Header: FieldHeader{stBlob, 3}, IsVLEncoded: true},
	"TxnSignature":  {Name: "TxnSignature", Header: FieldHeader{stBlob, 4}, IsVLEncoded: true},
	"Signature":     {Name: "Signature", Header: FieldHeader{stBlob, 6}, IsVLEncoded: true},
	"Domain":        {Name: "Domain", Header: FieldHeader{stBlob, 7}, IsVLEncoded: true},
	"MemoType":      {Name: "MemoType", Header: FieldHeader{stBlob, 12}, IsVLEncoded: true},
	"MemoData":      {Name: "MemoData", Header: FieldHeader{stBlob, 13}, IsVLEncoded: true},
	"MemoFormat":    {Name: "MemoFormat", Header: FieldHeader{stBlob, 14}, IsVLEncoded: true},
	"Fulfillment":   {Name: "Fulfillment", Header: FieldHeader{stBlob, 16}, IsVLEncoded: true},
	"Condition":     {Name: "Condition", Header: FieldHeader{stBlob, 17}, IsVLEncoded: true},

	// AccountID (VL encoded)
	"Account":     {Name: "Account", Header: FieldHeader{stAccountID, 1}, IsVLEncoded: true},
	"Owner":       {Name: "Owner", Header: FieldHeader{stAccountID, 2}, IsVLEncoded: true},
	"Destination": {Name: "Destination", Header: FieldHeader{stAccountID, 3}, IsVLEncoded: true},
	"Issuer":      {Name: "Issuer", Header: FieldHeader{stAccountID, 4}, IsVLEncoded: true},
	"Authorize":   {Name: "Authorize", Header: FieldHeader{stAccountID, 5}, IsVLEncoded: true},
	"Unauthorize": {Name: "Unauthorize", Header: FieldHeader{stAccountID, 6}, IsVLEncoded: true},
	"RegularKey":  {Name: "RegularKey", Header: FieldHeader{stAccountID, 8}, IsVLEncoded: true},

	// STObject
	"TransactionMetaData": {Name: "TransactionMetaData", Header: FieldHeader{stObject, 2}},
	"CreatedNode":         {Name: "CreatedNode", Header: FieldHeader{stObject, 3}},
	"DeletedNode":         {Name: "DeletedNode", Header: FieldHeader{stObject, 4}},
	"ModifiedNode":        {Name: "ModifiedNode", Header: FieldHeader{stObject, 5}},
	"PreviousFields":      {Name: "PreviousFields", Header: FieldHeader{stObject, 6}},
	"FinalFields":         {Name: "FinalFields", Header: FieldHeader{stObject, 7}},
	"NewFields":           {Name: "NewFields", Header: FieldHeader{stObject, 8}},
	"Memo":                {Name: "Memo", Header: FieldHeader{stObject, 10}},
	"SignerEntry":         {Name: "SignerEntry", Header: FieldHeader{stObject, 11}},
	"Signer":              {Name: "Signer", Header: FieldHeader{stObject, 16}},

	// STArray
	"Signers":       {Name: "Signers", Header: FieldHeader{stArray, 3}},
	"SignerEntries": {Name: "SignerEntries", Header: FieldHeader{stArray, 4}},
	"AffectedNodes": {Name: "AffectedNodes", Header: FieldHeader{stArray, 8}},
	"Memos":         {Name: "Memos", Header: FieldHeader{stArray, 9}},

	// Hash160
	"TakerPaysCurrency": {Name: "TakerPaysCurrency", Header: FieldHeader{stHash160, 1}},
	"TakerPaysIssuer":   {Name: "TakerPaysIssuer", Header: FieldHeader{stHash160, 2}},
	"TakerGetsCurrency": {Name: "TakerGetsCurrency", Header: FieldHeader{stHash160, 3}},
	"TakerGetsIssuer":   {Name: "TakerGetsIssuer", Header: FieldHeader{stHash160, 4}},

	// Vector256
	"Indexes":    {Name: "Indexes", Header: FieldHeader{stVector256, 1}, IsVLEncoded: true},
	"Hashes":     {Name: "Hashes", Header: FieldHeader{stVector256, 2}, IsVLEncoded: true},
	"Amendments": {Name: "Amendments", Header: FieldHeader{stVector256, 3}, IsVLEncoded: true},
}

// fieldsByHeader is the reverse index, built once at init.
var fieldsByHeader = func() map[FieldHeader]FieldInstance {
	m := make(map[FieldHeader]FieldInstance, len(fieldsByName))
	for _, fi := range fieldsByName {
		m[fi.Header] = fi
	}
	return m
}()

// lookupField returns the field definition for name.
func lookupField(name string) (FieldInstance, error) {
	fi, ok := fieldsByName[name]
	if !ok {
		return FieldInstance{}, fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return fi, nil
}

// lookupHeader returns the field definition for a decoded header.
func lookupHeader(h FieldHeader) (FieldInstance, error) {
	fi, ok := fieldsByHeader[h]
	if !ok {
		return FieldInstance{}, fmt.Errorf("%w: type=%d field=%d", ErrUnknownField, h.TypeCode, h.FieldCode)
	}
	return fi, nil
}

// encodeFieldHeader renders a field header per the canonical format rules.
func encodeFieldHeader(h FieldHeader) ([]byte, error) {
	t, f := h.TypeCode, h.FieldCode
	switch {
	case t <= 0 || f <= 0 || t > 255 || f > 255:
		return nil, fmt.Errorf("%w: type=%d field=%d", ErrBadFieldHeader, t, f)
	case t < 16 && f < 16:
		return []byte{byte(t<<4 | f)}, nil
	case t < 16:
		return []byte{byte(t << 4), byte(f)}, nil
	case f < 16:
		return []byte{byte(f), byte(t)}, nil
	default:
		return []byte{0, byte(t), byte(f)}, nil
	}
}
