// Package binarycodec implements the XRPL canonical binary serialization
// used to compute content hashes of transactions and their metadata.
//
// Encode and Decode are exact inverses for every object that maps onto the
// canonical field schema: Decode(Encode(x)) == x, and the byte output of
// Encode is independent of map iteration order.
package binarycodec

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/LeJamon/xrplhist/internal/codec/addresscodec"
)

// Encode serializes a structured transaction or metadata object into its
// canonical byte sequence. Fields are emitted in (type code, field code)
// order regardless of the order keys were inserted into the map.
func Encode(obj map[string]any) ([]byte, error) {
	s := &binarySerializer{}
	if err := encodeObjectFields(s, obj); err != nil {
		return nil, err
	}
	return s.sink, nil
}

// EncodeHex is Encode with uppercase hex output, the form stored in rows.
func EncodeHex(obj map[string]any) (string, error) {
	raw, err := Encode(obj)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(raw)), nil
}

// Decode parses a canonical byte sequence back into its structured form.
func Decode(data []byte) (map[string]any, error) {
	p := newBinaryParser(data)
	obj, err := decodeObjectFields(p, false)
	if err != nil {
		return nil, err
	}
	if p.hasMore() {
		return nil, ErrTrailingBytes
	}
	return obj, nil
}

// DecodeHex is Decode over a hex string.
func DecodeHex(encoded string) (map[string]any, error) {
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadValue, err)
	}
	return Decode(raw)
}

func encodeObjectFields(s *binarySerializer, obj map[string]any) error {
	fields := make([]FieldInstance, 0, len(obj))
	for name := range obj {
		fi, err := lookupField(name)
		if err != nil {
			return err
		}
		fields = append(fields, fi)
	}
	sort.Slice(fields, func(i, j int) bool {
		a, b := fields[i].Header, fields[j].Header
		if a.TypeCode != b.TypeCode {
			return a.TypeCode < b.TypeCode
		}
		return a.FieldCode < b.FieldCode
	})

	for _, fi := range fields {
		if err := encodeField(s, fi, obj[fi.Name]); err != nil {
			return fmt.Errorf("field %s: %w", fi.Name, err)
		}
	}
	return nil
}

func encodeField(s *binarySerializer, fi FieldInstance, value any) error {
	if err := s.writeFieldHeader(fi.Header); err != nil {
		return err
	}

	switch fi.Header.TypeCode {
	case stUInt8:
		return encodeUInt8Field(s, fi, value)
	case stUInt16:
		return encodeUInt16Field(s, fi, value)
	case stUInt32:
		n, err := toUint64(value, 1<<32-1)
		if err != nil {
			return err
		}
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], uint32(n))
		s.writeRaw(buf[:])
		return nil
	case stUInt64:
		n, err := toUInt64Hex(value)
		if err != nil {
			return err
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], n)
		s.writeRaw(buf[:])
		return nil
	case stHash128:
		return encodeHashField(s, value, 16)
	case stHash160:
		return encodeHashField(s, value, 20)
	case stHash256:
		return encodeHashField(s, value, 32)
	case stAmount:
		raw, err := encodeAmount(value)
		if err != nil {
			return err
		}
		s.writeRaw(raw)
		return nil
	case stBlob:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: blob fields take hex strings", ErrBadValue)
		}
		raw, err := hex.DecodeString(str)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadValue, err)
		}
		return s.writeVL(raw)
	case stAccountID:
		addr, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: account fields take r-addresses", ErrBadValue)
		}
		raw, err := addresscodec.DecodeAccountID(addr)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadValue, err)
		}
		return s.writeVL(raw)
	case stObject:
		inner, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: object fields take maps", ErrBadValue)
		}
		if err := encodeObjectFields(s, inner); err != nil {
			return err
		}
		s.writeRaw([]byte{objectEndMarker})
		return nil
	case stArray:
		return encodeArrayField(s, value)
	case stVector256:
		return encodeVector256Field(s, value)
	default:
		return fmt.Errorf("%w: unsupported type code %d", ErrBadValue, fi.Header.TypeCode)
	}
}

func encodeUInt8Field(s *binarySerializer, fi FieldInstance, value any) error {
	if fi.Name == "TransactionResult" {
		if name, ok := value.(string); ok {
			code, err := ResultCodeFromName(name)
			if err != nil {
				return err
			}
			s.writeRaw([]byte{code})
			return nil
		}
	}
	n, err := toUint64(value, 0xFF)
	if err != nil {
		return err
	}
	s.writeRaw([]byte{byte(n)})
	return nil
}

func encodeUInt16Field(s *binarySerializer, fi FieldInstance, value any) error {
	if name, ok := value.(string); ok {
		var code uint16
		var found bool
		switch fi.Name {
		case "TransactionType":
			code, found = txTypeByName[name]
		case "LedgerEntryType":
			code, found = ledgerEntryTypeByName[name]
		}
		if !found {
			return fmt.Errorf("%w: %s %q", ErrBadValue, fi.Name, name)
		}
		var buf [2]byte
		binary.BigEndian.PutUint16(buf[:], code)
		s.writeRaw(buf[:])
		return nil
	}
	n, err := toUint64(value, 0xFFFF)
	if err != nil {
		return err
	}
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(n))
	s.writeRaw(buf[:])
	return nil
}

func encodeHashField(s *binarySerializer, value any, size int) error {
	str, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: hash fields take hex strings", ErrBadValue)
	}
	raw, err := hex.DecodeString(str)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadValue, err)
	}
	if len(raw) != size {
		return fmt.Errorf("%w: expected %d byte hash, got %d", ErrBadValue, size, len(raw))
	}
	s.writeRaw(raw)
	return nil
}

func encodeArrayField(s *binarySerializer, value any) error {
	items, ok := value.([]any)
	if !ok {
		return fmt.Errorf("%w: array fields take object lists", ErrBadValue)
	}
	for _, item := range items {
		wrapper, ok := item.(map[string]any)
		if !ok || len(wrapper) != 1 {
			return fmt.Errorf("%w: array items are single-key wrapper objects", ErrBadValue)
		}
		for name, inner := range wrapper {
			fi, err := lookupField(name)
			if err != nil {
				return err
			}
			if fi.Header.TypeCode != stObject {
				return fmt.Errorf("%w: array item %s is not an object field", ErrBadValue, name)
			}
			if err := encodeField(s, fi, inner); err != nil {
				return fmt.Errorf("array item %s: %w", name, err)
			}
		}
	}
	s.writeRaw([]byte{arrayEndMarker})
	return nil
}

func encodeVector256Field(s *binarySerializer, value any) error {
	var hashes []string
	switch v := value.(type) {
	case []string:
		hashes = v
	case []any:
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return fmt.Errorf("%w: vector256 items are hex strings", ErrBadValue)
			}
			hashes = append(hashes, str)
		}
	default:
		return fmt.Errorf("%w: vector256 fields take hash lists", ErrBadValue)
	}

	raw := make([]byte, 0, len(hashes)*32)
	for _, h := range hashes {
		item, err := hex.DecodeString(h)
		if err != nil || len(item) != 32 {
			return fmt.Errorf("%w: bad vector256 item %q", ErrBadValue, h)
		}
		raw = append(raw, item...)
	}
	return s.writeVL(raw)
}

// decodeObjectFields reads fields until end of input, or until an object end
// marker when nested is true.
func decodeObjectFields(p *binaryParser, nested bool) (map[string]any, error) {
	out := make(map[string]any)
	for p.hasMore() {
		if nested {
			b, err := p.peek()
			if err != nil {
				return nil, err
			}
			if b == objectEndMarker {
				if _, err := p.readByte(); err != nil {
					return nil, err
				}
				return out, nil
			}
		}

		header, err := p.readFieldHeader()
		if err != nil {
			return nil, err
		}
		fi, err := lookupHeader(header)
		if err != nil {
			return nil, err
		}
		value, err := decodeFieldValue(p, fi)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", fi.Name, err)
		}
		out[fi.Name] = value
	}
	if nested {
		return nil, ErrUnexpectedEnd
	}
	return out, nil
}

func decodeFieldValue(p *binaryParser, fi FieldInstance) (any, error) {
	switch fi.Header.TypeCode {
	case stUInt8:
		b, err := p.readByte()
		if err != nil {
			return nil, err
		}
		if fi.Name == "TransactionResult" {
			if name, err := ResultNameFromCode(b); err == nil {
				return name, nil
			}
		}
		return uint32(b), nil
	case stUInt16:
		raw, err := p.readBytes(2)
		if err != nil {
			return nil, err
		}
		code := binary.BigEndian.Uint16(raw)
		switch fi.Name {
		case "TransactionType":
			if name, ok := txTypeNameByCode[code]; ok {
				return name, nil
			}
		case "LedgerEntryType":
			if name, ok := ledgerEntryNameByCode[code]; ok {
				return name, nil
			}
		}
		return uint32(code), nil
	case stUInt32:
		raw, err := p.readBytes(4)
		if err != nil {
			return nil, err
		}
		return binary.BigEndian.Uint32(raw), nil
	case stUInt64:
		raw, err := p.readBytes(8)
		if err != nil {
			return nil, err
		}
		// UInt64 values round trip as minimal hex strings, matching rippled.
		s := strings.TrimLeft(hex.EncodeToString(raw), "0")
		if s == "" {
			s = "0"
		}
		return s, nil
	case stHash128:
		return decodeHashValue(p, 16)
	case stHash160:
		return decodeHashValue(p, 20)
	case stHash256:
		return decodeHashValue(p, 32)
	case stAmount:
		return decodeAmount(p)
	case stBlob:
		n, err := p.readVariableLength()
		if err != nil {
			return nil, err
		}
		raw, err := p.readBytes(n)
		if err != nil {
			return nil, err
		}
		return strings.ToUpper(hex.EncodeToString(raw)), nil
	case stAccountID:
		n, err := p.readVariableLength()
		if err != nil {
			return nil, err
		}
		if n != addresscodec.AccountIDLength {
			return nil, fmt.Errorf("%w: %d byte account ID", ErrBadValue, n)
		}
		raw, err := p.readBytes(n)
		if err != nil {
			return nil, err
		}
		return addresscodec.EncodeAccountID(raw)
	case stObject:
		return decodeObjectFields(p, true)
	case stArray:
		return decodeArrayValue(p)
	case stVector256:
		n, err := p.readVariableLength()
		if err != nil {
			return nil, err
		}
		if n%32 != 0 {
			return nil, fmt.Errorf("%w: vector256 length %d", ErrBadValue, n)
		}
		raw, err := p.readBytes(n)
		if err != nil {
			return nil, err
		}
		items := make([]any, 0, n/32)
		for i := 0; i < n; i += 32 {
			items = append(items, strings.ToUpper(hex.EncodeToString(raw[i:i+32])))
		}
		return items, nil
	default:
		return nil, fmt.Errorf("%w: unsupported type code %d", ErrBadValue, fi.Header.TypeCode)
	}
}

func decodeHashValue(p *binaryParser, size int) (any, error) {
	raw, err := p.readBytes(size)
	if err != nil {
		return nil, err
	}
	return strings.ToUpper(hex.EncodeToString(raw)), nil
}

func decodeArrayValue(p *binaryParser) (any, error) {
	items := make([]any, 0)
	for {
		b, err := p.peek()
		if err != nil {
			return nil, err
		}
		if b == arrayEndMarker {
			if _, err := p.readByte(); err != nil {
				return nil, err
			}
			return items, nil
		}

		header, err := p.readFieldHeader()
		if err != nil {
			return nil, err
		}
		fi, err := lookupHeader(header)
		if err != nil {
			return nil, err
		}
		if fi.Header.TypeCode != stObject {
			return nil, fmt.Errorf("%w: array item %s is not an object field", ErrBadValue, fi.Name)
		}
		inner, err := decodeObjectFields(p, true)
		if err != nil {
			return nil, err
		}
		items = append(items, map[string]any{fi.Name: inner})
	}
}

// toUint64 converts the numeric forms that reach the codec from JSON and
// internal callers into a bounded uint64.
func toUint64(value any, max uint64) (uint64, error) {
	var n uint64
	switch v := value.(type) {
	case uint8:
		n = uint64(v)
	case uint16:
		n = uint64(v)
	case uint32:
		n = uint64(v)
	case uint64:
		n = v
	case uint:
		n = uint64(v)
	case int:
		if v < 0 {
			return 0, fmt.Errorf("%w: negative integer %d", ErrBadValue, v)
		}
		n = uint64(v)
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("%w: negative integer %d", ErrBadValue, v)
		}
		n = uint64(v)
	case float64:
		if v < 0 || v != float64(uint64(v)) {
			return 0, fmt.Errorf("%w: %v is not an unsigned integer", ErrBadValue, v)
		}
		n = uint64(v)
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrBadValue, v)
		}
		n = parsed
	default:
		return 0, fmt.Errorf("%w: cannot convert %T to integer", ErrBadValue, value)
	}
	if n > max {
		return 0, fmt.Errorf("%w: %d exceeds field range", ErrBadValue, n)
	}
	return n, nil
}

// toUInt64Hex accepts rippled's hex string form for UInt64 fields in
// addition to plain integers.
func toUInt64Hex(value any) (uint64, error) {
	if s, ok := value.(string); ok {
		n, err := strconv.ParseUint(s, 16, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a hex UInt64", ErrBadValue, s)
		}
		return n, nil
	}
	return toUint64(value, 1<<64-1)
}
