// internal/codec/value.go
package codec

import (
	"math"
	"strconv"
)

// Kind tags what a Value holds.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInt
	KindFloat
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Value is a decoded data point value.
// The zero Value is Unknown (never read, or not decodable).
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

func Unknown() Value { return Value{} }
func Int(v int64) Value { return Value{kind: KindInt, i: v} }
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }
func Text(v string) Value { return Value{kind: KindText, s: v} }

// Bool stores b as Int 1/0, the way registers carry flags.
func Bool(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

// Number keeps integral values as Int and everything else as Float.
func Number(v float64) Value {
	if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
		return Int(int64(v))
	}
	return Float(v)
}

func (v Value) Kind() Kind  { return v.kind }
func (v Value) Known() bool { return v.kind != KindUnknown }

// Int returns the value as an integer. Floats are truncated.
func (v Value) Int() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		return int64(v.f), true
	}
	return 0, false
}

// Float returns the value as a float64.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

func (v Value) Text() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.s, true
}

// Truthy reports whether a numeric value is non-zero.
func (v Value) Truthy() bool {
	f, ok := v.Float()
	return ok && f != 0
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindText:
		return v.s
	default:
		return "unknown"
	}
}

// MarshalYAML renders Unknown as null and everything else natively.
func (v Value) MarshalYAML() (interface{}, error) {
	switch v.kind {
	case KindInt:
		return v.i, nil
	case KindFloat:
		return v.f, nil
	case KindText:
		return v.s, nil
	default:
		return nil, nil
	}
}
