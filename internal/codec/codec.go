// internal/codec/codec.go
package codec

// Conversion between wire words and typed values.
// Pure and stateless: no IO, no errors. Overflow wraps.

import (
	"math"
	"math/bits"
)

// ByteOrder is the word order of a multi-word register.
type ByteOrder int

const (
	BigEndian    ByteOrder = iota // high word first
	LittleEndian                  // low word first
)

// String returns the config spelling of the order.
func (o ByteOrder) String() string {
	if o == LittleEndian {
		return "little"
	}
	return "big"
}

// Combine concatenates words big-endian into one value.
// Little-endian input has its word order reversed first.
// Only the last four words contribute.
func Combine(words []uint16, order ByteOrder) uint64 {
	n := len(words)
	var v uint64
	for i := 0; i < n; i++ {
		w := words[i]
		if order == LittleEndian {
			w = words[n-1-i]
		}
		v = v<<16 | uint64(w)
	}
	return v
}

// Split is the inverse of Combine.
// The value is masked to wordCount*16 bits; negative input wraps as two's complement.
func Split(value int64, wordCount int, order ByteOrder) []uint16 {
	return SplitUint(uint64(value), wordCount, order)
}

// SplitUint splits an unsigned value into wordCount words.
func SplitUint(value uint64, wordCount int, order ByteOrder) []uint16 {
	if wordCount <= 0 {
		return nil
	}
	if wordCount < 4 {
		value &= (uint64(1) << (16 * uint(wordCount))) - 1
	}

	out := make([]uint16, wordCount)
	for i := wordCount - 1; i >= 0; i-- {
		out[i] = uint16(value)
		value >>= 16
	}

	if order == LittleEndian {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// FloatFromRaw reinterprets the low 32 bits of a combined value as IEEE-754.
//
// Big-endian uses the bit layout directly. Little-endian reverses all four
// bytes before reinterpretation; swapping the two words is not enough.
func FloatFromRaw(combined uint64, order ByteOrder) float32 {
	b := uint32(combined)
	if order == LittleEndian {
		b = bits.ReverseBytes32(b)
	}
	return math.Float32frombits(b)
}

// FloatToRaw is the inverse of FloatFromRaw.
func FloatToRaw(f float32, order ByteOrder) uint64 {
	b := math.Float32bits(f)
	if order == LittleEndian {
		b = bits.ReverseBytes32(b)
	}
	return uint64(b)
}

// ApplyScale returns raw * scale.
func ApplyScale(raw, scale float64) float64 {
	return raw * scale
}

// Decode turns the words of one register into its raw value and engineering value.
// float32 registers bypass scale: they already carry engineering units.
func Decode(words []uint16, order ByteOrder, isFloat bool, scale float64) (uint64, float64) {
	raw := Combine(words, order)
	if isFloat {
		return raw, float64(FloatFromRaw(raw, order))
	}
	return raw, ApplyScale(float64(raw), scale)
}
