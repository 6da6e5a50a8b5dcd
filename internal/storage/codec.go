package storage

import (
	"fmt"

	"github.com/ugorji/go/codec"

	"github.com/LeJamon/xrplhist/internal/storage/compression"
)

// Stored values are the CBOR encoding of the column map, framed by a one
// byte compression flag. Canonical encoding keeps values byte-stable for
// idempotent rewrites of the same row.
const (
	frameRaw byte = 0
	frameLZ4 byte = 1
)

var cborHandle = func() *codec.CborHandle {
	h := new(codec.CborHandle)
	h.Canonical = true
	return h
}()

// encodeColumns serializes a column map to canonical CBOR.
func encodeColumns(columns map[string]any) ([]byte, error) {
	var out []byte
	enc := codec.NewEncoderBytes(&out, cborHandle)
	if err := enc.Encode(columns); err != nil {
		return nil, fmt.Errorf("encode columns: %w", err)
	}
	return out, nil
}

// decodeColumns deserializes a CBOR column map.
func decodeColumns(data []byte) (map[string]any, error) {
	var columns map[string]any
	dec := codec.NewDecoderBytes(data, cborHandle)
	if err := dec.Decode(&columns); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRow, err)
	}
	return columns, nil
}

// frameValue encodes and optionally compresses one row value. Values below
// the threshold, or that do not shrink, are stored raw.
func frameValue(columns map[string]any, comp compression.Compressor, threshold, level int) ([]byte, error) {
	raw, err := encodeColumns(columns)
	if err != nil {
		return nil, err
	}

	if comp != nil && comp.Name() != "none" && len(raw) >= threshold {
		if packed, err := comp.Compress(raw, level); err == nil && len(packed) < len(raw) {
			out := make([]byte, 1+len(packed))
			out[0] = frameLZ4
			copy(out[1:], packed)
			return out, nil
		}
	}

	out := make([]byte, 1+len(raw))
	out[0] = frameRaw
	copy(out[1:], raw)
	return out, nil
}

// lz4Decoder decompresses stored values regardless of the configured write
// compressor, so switching the config never orphans old rows.
var lz4Decoder = &compression.LZ4Compressor{}

// unframeValue decodes one stored row value.
func unframeValue(value []byte) (map[string]any, error) {
	if len(value) == 0 {
		return nil, fmt.Errorf("%w: empty value", ErrBadRow)
	}

	payload := value[1:]
	switch value[0] {
	case frameRaw:
		return decodeColumns(payload)
	case frameLZ4:
		raw, err := lz4Decoder.Decompress(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadRow, err)
		}
		return decodeColumns(raw)
	default:
		return nil, fmt.Errorf("%w: unknown frame flag %d", ErrBadRow, value[0])
	}
}
