package binarycodec

import "fmt"

// binarySerializer accumulates canonically ordered field bytes.
type binarySerializer struct {
	sink []byte
}

func (s *binarySerializer) writeFieldHeader(h FieldHeader) error {
	raw, err := encodeFieldHeader(h)
	if err != nil {
		return err
	}
	s.sink = append(s.sink, raw...)
	return nil
}

func (s *binarySerializer) writeRaw(data []byte) {
	s.sink = append(s.sink, data...)
}

func (s *binarySerializer) writeVL(data []byte) error {
	prefix, err := encodeVariableLength(len(data))
	if err != nil {
		return err
	}
	s.sink = append(s.sink, prefix...)
	s.sink = append(s.sink, data...)
	return nil
}

// encodeVariableLength encodes a VL prefix:
// 0-192 one byte, 193-12480 two bytes, 12481-918744 three bytes.
func encodeVariableLength(length int) ([]byte, error) {
	if length < 0 {
		return nil, ErrLengthPrefix
	}
	if length <= 192 {
		return []byte{byte(length)}, nil
	}
	if length <= 12480 {
		length -= 193
		return []byte{byte(length>>8 + 193), byte(length & 0xFF)}, nil
	}
	if length <= 918744 {
		length -= 12481
		return []byte{byte(length>>16 + 241), byte(length >> 8 & 0xFF), byte(length & 0xFF)}, nil
	}
	return nil, ErrLengthPrefix
}

// EncodeWithVL prepends a VL prefix to data. This is the framing used for
// transaction-plus-metadata blobs in the transaction tree.
func EncodeWithVL(data []byte) ([]byte, error) {
	prefix, err := encodeVariableLength(len(data))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(prefix)+len(data))
	out = append(out, prefix...)
	out = append(out, data...)
	return out, nil
}

// binaryParser walks a canonical byte sequence field by field.
type binaryParser struct {
	data []byte
	pos  int
}

func newBinaryParser(data []byte) *binaryParser {
	return &binaryParser{data: data}
}

func (p *binaryParser) hasMore() bool {
	return p.pos < len(p.data)
}

func (p *binaryParser) peek() (byte, error) {
	if !p.hasMore() {
		return 0, ErrUnexpectedEnd
	}
	return p.data[p.pos], nil
}

func (p *binaryParser) readByte() (byte, error) {
	if !p.hasMore() {
		return 0, ErrUnexpectedEnd
	}
	b := p.data[p.pos]
	p.pos++
	return b, nil
}

func (p *binaryParser) readBytes(n int) ([]byte, error) {
	if n < 0 || p.pos+n > len(p.data) {
		return nil, ErrUnexpectedEnd
	}
	out := p.data[p.pos : p.pos+n]
	p.pos += n
	return out, nil
}

// readFieldHeader decodes the 1-3 byte field identifier.
func (p *binaryParser) readFieldHeader() (FieldHeader, error) {
	first, err := p.readByte()
	if err != nil {
		return FieldHeader{}, err
	}

	typeCode := int32(first >> 4)
	fieldCode := int32(first & 0x0F)

	if typeCode == 0 {
		if fieldCode == 0 {
			// Three byte form: 0x00, type, field.
			t, err := p.readByte()
			if err != nil {
				return FieldHeader{}, err
			}
			f, err := p.readByte()
			if err != nil {
				return FieldHeader{}, err
			}
			if t < 16 || f < 16 {
				return FieldHeader{}, fmt.Errorf("%w: non-canonical three byte header", ErrBadFieldHeader)
			}
			return FieldHeader{TypeCode: int32(t), FieldCode: int32(f)}, nil
		}
		// Low field code, high type code.
		t, err := p.readByte()
		if err != nil {
			return FieldHeader{}, err
		}
		if t < 16 {
			return FieldHeader{}, fmt.Errorf("%w: non-canonical type byte", ErrBadFieldHeader)
		}
		return FieldHeader{TypeCode: int32(t), FieldCode: fieldCode}, nil
	}

	if fieldCode == 0 {
		// Low type code, high field code.
		f, err := p.readByte()
		if err != nil {
			return FieldHeader{}, err
		}
		if f < 16 {
			return FieldHeader{}, fmt.Errorf("%w: non-canonical field byte", ErrBadFieldHeader)
		}
		return FieldHeader{TypeCode: typeCode, FieldCode: int32(f)}, nil
	}

	return FieldHeader{TypeCode: typeCode, FieldCode: fieldCode}, nil
}

// readVariableLength decodes a VL prefix and returns the payload length.
func (p *binaryParser) readVariableLength() (int, error) {
	b1, err := p.readByte()
	if err != nil {
		return 0, err
	}
	switch {
	case b1 <= 192:
		return int(b1), nil
	case b1 <= 240:
		b2, err := p.readByte()
		if err != nil {
			return 0, err
		}
		return 193 + (int(b1)-193)*256 + int(b2), nil
	case b1 <= 254:
		b2, err := p.readByte()
		if err != nil {
			return 0, err
		}
		b3, err := p.readByte()
		if err != nil {
			return 0, err
		}
		return 12481 + (int(b1)-241)*65536 + int(b2)*256 + int(b3), nil
	default:
		return 0, fmt.Errorf("%w: invalid length prefix byte 0x%02X", ErrLengthPrefix, b1)
	}
}
