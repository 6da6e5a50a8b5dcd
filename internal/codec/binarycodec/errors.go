package binarycodec

import "errors"

// Codec errors. All of them are structural: callers must not retry the same
// input, and no partial output is ever returned alongside one.
var (
	ErrUnknownField    = errors.New("unknown field")
	ErrBadFieldHeader  = errors.New("invalid field header")
	ErrBadValue        = errors.New("value cannot be serialized for field")
	ErrUnexpectedEnd   = errors.New("unexpected end of input")
	ErrLengthPrefix    = errors.New("length of value must not exceed 918744 bytes")
	ErrTrailingBytes   = errors.New("trailing bytes after decoded object")
	ErrBadResultCode   = errors.New("unknown transaction result code")
	ErrBadCurrencyCode = errors.New("invalid currency code")
)
