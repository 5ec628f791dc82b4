package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Layout(t *testing.T) {
	tests := []struct {
		name string
		vec  []float32
		want []byte
	}{
		{"empty", nil, nil},
		{"one", []float32{1}, []byte{0x00, 0x00, 0x80, 0x3f}},
		{"negative half", []float32{-0.5}, []byte{0x00, 0x00, 0x00, 0xbf}},
		{"pair", []float32{2, 0}, []byte{0x00, 0x00, 0x00, 0x40, 0x00, 0x00, 0x00, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(tt.vec)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, ByteLen(len(tt.vec)))

			back, err := Decode(got)
			require.NoError(t, err)
			assert.Equal(t, tt.vec, back)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrLength)

	three := Encode([]float32{1, 2, 3})
	got, err := DecodeDim(three, 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, got)

	for _, dim := range []int{2, 4} {
		_, err = DecodeDim(three, dim)
		assert.ErrorIs(t, err, ErrLength, "dim %d", dim)
	}
	_, err = DecodeDim(nil, 4)
	assert.ErrorIs(t, err, ErrLength)
}
