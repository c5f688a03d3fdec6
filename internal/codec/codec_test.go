// internal/codec/codec_test.go
package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDecode_SignedSingleRegister(t *testing.T) {
	v, err := Decode([]uint16{0xFFFB}, 1.0)
	require.NoError(t, err)
	assert.Equal(t, KindInt, v.Kind())

	i, _ := v.Int()
	assert.Equal(t, int64(-5), i)
}

func TestDecode_TwoRegistersScaled(t *testing.T) {
	v, err := Decode([]uint16{0x0000, 0x000A}, 0.1)
	require.NoError(t, err)
	assert.Equal(t, KindFloat, v.Kind())

	f, _ := v.Float()
	assert.InDelta(t, 1.0, f, 1e-9)
}

func TestDecode_TwoRegistersUse32BitWidth(t *testing.T) {
	// 0x0000FFFF is positive over 32 bits.
	v, err := Decode([]uint16{0x0000, 0xFFFF}, 1.0)
	require.NoError(t, err)
	i, _ := v.Int()
	assert.Equal(t, int64(65535), i)

	v, err = Decode([]uint16{0xFFFF, 0xFFFE}, 1.0)
	require.NoError(t, err)
	i, _ = v.Int()
	assert.Equal(t, int64(-2), i)
}

func TestDecode_Text(t *testing.T) {
	v, err := Decode([]uint16{72, 73, 0, 0}, 1.0)
	require.NoError(t, err)
	s, ok := v.Text()
	require.True(t, ok)
	assert.Equal(t, "HI", s)
}

func TestDecode_TextAllZeroIsEmpty(t *testing.T) {
	v, err := Decode([]uint16{0, 0, 0, 0}, 1.0)
	require.NoError(t, err)
	s, ok := v.Text()
	require.True(t, ok)
	assert.Equal(t, "", s)
}

func TestDecode_TextIgnoresScaling(t *testing.T) {
	v, err := Decode([]uint16{'A', 'B', 'C'}, 0.1)
	require.NoError(t, err)
	s, _ := v.Text()
	assert.Equal(t, "ABC", s)
}

func TestDecode_InvalidCodePointIsUnknown(t *testing.T) {
	v, err := Decode([]uint16{'A', 0xD800, 'B'}, 1.0)
	require.ErrorIs(t, err, ErrDecode)
	assert.False(t, v.Known())
}

func TestDecode_Empty(t *testing.T) {
	_, err := Decode(nil, 1.0)
	require.ErrorIs(t, err, ErrDecode)
}

func TestEncode(t *testing.T) {
	cases := []struct {
		name    string
		value   float64
		scaling float64
		count   int
		want    []uint16
	}{
		{"negative single", -5, 1.0, 1, []uint16{0xFFFB}},
		{"scaled single", 21.5, 0.1, 1, []uint16{215}},
		{"unsigned top of range", 65535, 1.0, 1, []uint16{0xFFFF}},
		{"double", 70000, 1.0, 2, []uint16{0x0001, 0x1170}},
		{"negative double", -2, 1.0, 2, []uint16{0xFFFF, 0xFFFE}},
		{"round half to even", 2.5, 1.0, 1, []uint16{2}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Encode(tc.value, tc.scaling, tc.count)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEncode_UnsupportedLength(t *testing.T) {
	_, err := Encode(1, 1.0, 3)
	require.ErrorIs(t, err, ErrUnsupportedWriteLength)

	_, err = Encode(1, 1.0, 0)
	require.ErrorIs(t, err, ErrUnsupportedWriteLength)
}

func TestEncode_OutOfRange(t *testing.T) {
	_, err := Encode(65536, 1.0, 1)
	require.ErrorIs(t, err, ErrValueOutOfRange)

	_, err = Encode(-32769, 1.0, 1)
	require.ErrorIs(t, err, ErrValueOutOfRange)

	_, err = Encode(math.NaN(), 1.0, 1)
	require.ErrorIs(t, err, ErrValueOutOfRange)
}

func TestEncode_InvalidScaling(t *testing.T) {
	_, err := Encode(1, 0, 1)
	require.ErrorIs(t, err, ErrInvalidScaling)
}

func TestRoundTrip_Integers(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 2).Draw(t, "registers")

		var v int64
		if n == 1 {
			v = int64(rapid.Int16().Draw(t, "v"))
		} else {
			v = int64(rapid.Int32().Draw(t, "v"))
		}

		words, err := Encode(float64(v), 1.0, n)
		if err != nil {
			t.Fatalf("encode %d over %d registers: %v", v, n, err)
		}
		got, err := Decode(words, 1.0)
		if err != nil {
			t.Fatalf("decode %v: %v", words, err)
		}
		if i, _ := got.Int(); i != v || got.Kind() != KindInt {
			t.Fatalf("round trip: got %v (%s), want %d", got, got.Kind(), v)
		}
	})
}

func TestRoundTrip_Scaled(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		scaling := rapid.SampledFrom([]float64{0.1, 0.01, 0.001, 3.6}).Draw(t, "scaling")
		raw := rapid.Int16().Draw(t, "raw")
		v := float64(raw) * scaling

		words, err := Encode(v, scaling, 1)
		if err != nil {
			t.Fatalf("encode %v: %v", v, err)
		}
		got, err := Decode(words, scaling)
		if err != nil {
			t.Fatalf("decode %v: %v", words, err)
		}
		f, _ := got.Float()
		if math.Abs(f-v) > scaling/2+1e-9 {
			t.Fatalf("round trip: got %v, want %v (scaling %v)", f, v, scaling)
		}
	})
}

func TestNumber(t *testing.T) {
	assert.Equal(t, KindInt, Number(3).Kind())
	assert.Equal(t, KindFloat, Number(3.5).Kind())
	assert.Equal(t, "3.5", Number(3.5).String())
	assert.Equal(t, "unknown", Unknown().String())
}
