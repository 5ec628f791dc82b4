package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ScalarSize is the byte width of one encoded component.
const ScalarSize = 4

// ErrLength is returned when a buffer does not hold whole float32 values,
// or not the number of them the caller asked for.
var ErrLength = errors.New("vector: bad embedding length")

// ByteLen is the encoded size of a vector with dim components.
func ByteLen(dim int) int { return dim * ScalarSize }

// Encode lays vec out as packed little-endian float32 values with no
// header. An empty vector encodes to nil, which the stores keep as
// "no embedding".
func Encode(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	out := make([]byte, 0, ByteLen(len(vec)))
	for _, v := range vec {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

// Decode reverses Encode, taking the dimension from len(b).
func Decode(b []byte) ([]float32, error) {
	if len(b)%ScalarSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrLength, len(b), ScalarSize)
	}
	return decode(b), nil
}

// DecodeDim decodes b and requires exactly dim components.
func DecodeDim(b []byte, dim int) ([]float32, error) {
	if len(b) != ByteLen(dim) {
		return nil, fmt.Errorf("%w: %d bytes, want %d for dim %d", ErrLength, len(b), ByteLen(dim), dim)
	}
	return decode(b), nil
}

func decode(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	vec := make([]float32, len(b)/ScalarSize)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*ScalarSize:]))
	}
	return vec
}
