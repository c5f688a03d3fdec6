// internal/codec/codec.go
package codec

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

var (
	// ErrDecode is non-fatal: the point becomes Unknown, the cycle goes on.
	ErrDecode = errors.New("codec: decode failed")

	ErrUnsupportedWriteLength = errors.New("codec: unsupported write length")
	ErrValueOutOfRange        = errors.New("codec: value out of range")
	ErrInvalidScaling         = errors.New("codec: invalid scaling")
)

// Decode converts raw register words into a value.
//
// One or two words are a big-endian signed integer over 16 or 32 bits.
// With scaling 1.0 the integer is returned as-is, otherwise as a float
// multiplied by scaling. More than two words are text: one character per
// register, trailing NULs stripped.
func Decode(words []uint16, scaling float64) (Value, error) {
	switch n := len(words); {
	case n == 0:
		return Unknown(), fmt.Errorf("%w: no registers", ErrDecode)
	case n <= 2:
		return decodeNumber(words, scaling), nil
	default:
		return decodeText(words)
	}
}

func decodeNumber(words []uint16, scaling float64) Value {
	var raw uint64
	for _, w := range words {
		raw = raw<<16 | uint64(w)
	}

	bits := uint(16 * len(words))
	signed := int64(raw)
	if raw >= 1<<(bits-1) {
		signed -= int64(1) << bits
	}

	if scaling == 1.0 {
		return Int(signed)
	}
	return Float(float64(signed) * scaling)
}

func decodeText(words []uint16) (Value, error) {
	var b strings.Builder
	b.Grow(len(words))

	for i, w := range words {
		r := rune(w)
		if !utf8.ValidRune(r) {
			return Unknown(), fmt.Errorf("%w: register %d holds invalid code point 0x%04X", ErrDecode, i, w)
		}
		b.WriteRune(r)
	}

	return Text(strings.TrimRight(b.String(), "\x00")), nil
}

// Encode converts a numeric value into count big-endian register words.
// Only one or two registers are writable.
func Encode(value, scaling float64, count int) ([]uint16, error) {
	if count < 1 || count > 2 {
		return nil, fmt.Errorf("%w: %d registers (only 1 or 2 are writable)", ErrUnsupportedWriteLength, count)
	}
	if scaling == 0 || math.IsNaN(scaling) || math.IsInf(scaling, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScaling, scaling)
	}

	q := value / scaling
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return nil, fmt.Errorf("%w: %v", ErrValueOutOfRange, value)
	}
	raw := math.RoundToEven(q)

	bits := 16 * count
	lo := -math.Ldexp(1, bits-1)
	hi := math.Ldexp(1, bits) - 1
	if raw < lo || raw > hi {
		return nil, fmt.Errorf("%w: %v does not fit %d registers", ErrValueOutOfRange, value, count)
	}

	r := int64(raw)
	if r < 0 {
		r += int64(1) << bits
	}
	u := uint64(r)

	words := make([]uint16, count)
	for i := count - 1; i >= 0; i-- {
		words[i] = uint16(u & 0xFFFF)
		u >>= 16
	}
	return words, nil
}
