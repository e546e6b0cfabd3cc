package pattern

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"
)

// FromBytes returns a pattern matching b exactly.
func FromBytes(b []byte) (Pattern, error) {
	if len(b) == 0 {
		return Pattern{}, ErrEmptyPattern
	}
	parts := make([]Part, len(b))
	for i, v := range b {
		parts[i] = Part{Kind: Byte, Value: v}
	}
	return Pattern{parts: parts}, nil
}

// FromString matches the bytes of s. A '?' in s becomes a wildcard and the
// pattern is padded with wildcards up to minLength.
func FromString(s string, minLength int) (Pattern, error) {
	n := len(s)
	if minLength > n {
		n = minLength
	}
	if n == 0 {
		return Pattern{}, ErrEmptyPattern
	}

	parts := make([]Part, n)
	for i := range parts {
		switch {
		case i >= len(s) || s[i] == '?':
			parts[i] = Part{Kind: Skip}
		default:
			parts[i] = Part{Kind: Byte, Value: s[i]}
		}
	}
	return Pattern{parts: parts}, nil
}

// FromUTF16 matches s encoded as UTF-16LE.
func FromUTF16(s string) (Pattern, error) {
	units := utf16.Encode([]rune(s))
	b := make([]byte, 0, len(units)*2)
	for _, u := range units {
		b = binary.LittleEndian.AppendUint16(b, u)
	}
	return FromBytes(b)
}

// FromUint matches the little-endian encoding of v on size bytes (1, 2, 4 or 8).
func FromUint(v uint64, size int) (Pattern, error) {
	var b []byte
	switch size {
	case 1:
		if v > math.MaxUint8 {
			return Pattern{}, fmt.Errorf("value %d overflows %d byte", v, size)
		}
		b = []byte{byte(v)}
	case 2:
		if v > math.MaxUint16 {
			return Pattern{}, fmt.Errorf("value %d overflows %d bytes", v, size)
		}
		b = binary.LittleEndian.AppendUint16(nil, uint16(v))
	case 4:
		if v > math.MaxUint32 {
			return Pattern{}, fmt.Errorf("value %d overflows %d bytes", v, size)
		}
		b = binary.LittleEndian.AppendUint32(nil, uint32(v))
	case 8:
		b = binary.LittleEndian.AppendUint64(nil, v)
	default:
		return Pattern{}, fmt.Errorf("invalid integer size: %d", size)
	}
	return FromBytes(b)
}

// FromFloat32 matches the IEEE 754 little-endian encoding of f.
func FromFloat32(f float32) (Pattern, error) {
	return FromUint(uint64(math.Float32bits(f)), 4)
}

// FromFloat64 matches the IEEE 754 little-endian encoding of f.
func FromFloat64(f float64) (Pattern, error) {
	return FromUint(math.Float64bits(f), 8)
}
