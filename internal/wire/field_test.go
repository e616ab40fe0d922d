package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFieldRoundtripFixed(t *testing.T) {
	cases := []Field{
		U8(0xAB),
		U16(0x1234),
		U32(0xDEADBEEF),
		Binary([]byte{1, 2, 3, 4}),
		NewString("CDJ-2000nexus"),
	}

	for _, f := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteField(&buf, f))

		got, err := ReadField(&buf, f.Kind())
		require.NoError(t, err)

		switch f.Kind() {
		case KindU8, KindU16, KindU32:
			assert.Equal(t, f.Uint32(), got.Uint32())
		case KindBinary:
			assert.Equal(t, f.Bytes(), got.Bytes())
		case KindString:
			assert.Equal(t, f.String(), got.String())
		}
	}
}

// TestFieldRoundtripProperty exercises invariant #1 from spec.md §8: parsing
// then re-serializing a valid field yields an equivalent value, for any
// payload rapid can generate.
func TestFieldRoundtripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		switch rapid.IntRange(0, 4).Draw(rt, "kind") {
		case 0:
			v := uint8(rapid.Uint32().Draw(rt, "v"))
			roundtripNumeric(t, U8(v))
		case 1:
			v := uint16(rapid.Uint32().Draw(rt, "v"))
			roundtripNumeric(t, U16(v))
		case 2:
			v := rapid.Uint32().Draw(rt, "v")
			roundtripNumeric(t, U32(v))
		case 3:
			b := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(rt, "b")
			var buf bytes.Buffer
			require.NoError(t, WriteField(&buf, Binary(b)))
			got, err := ReadField(&buf, KindBinary)
			require.NoError(t, err)
			if len(b) == 0 {
				assert.Empty(t, got.Bytes())
			} else {
				assert.Equal(t, b, got.Bytes())
			}
		case 4:
			s := rapid.StringN(0, 32, -1).Draw(rt, "s")
			var buf bytes.Buffer
			require.NoError(t, WriteField(&buf, NewString(s)))
			got, err := ReadField(&buf, KindString)
			require.NoError(t, err)
			assert.Equal(t, s, got.String())
		}
	})
}

func roundtripNumeric(t *testing.T, f Field) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteField(&buf, f))
	got, err := ReadField(&buf, f.Kind())
	require.NoError(t, err)
	assert.Equal(t, f.Uint32(), got.Uint32())
}

func TestReadFieldWrongKind(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteField(&buf, U32(1)))
	_, err := ReadField(&buf, KindU8)
	assert.Error(t, err)
}
