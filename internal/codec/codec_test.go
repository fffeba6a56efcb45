// internal/codec/codec_test.go
package codec

import (
	"math"
	"testing"
)

func equalWords(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCombine_WordOrder(t *testing.T) {
	words := []uint16{0x1234, 0x5678}

	if got := Combine(words, BigEndian); got != 0x12345678 {
		t.Fatalf("big: got=0x%X want=0x12345678", got)
	}
	if got := Combine(words, LittleEndian); got != 0x56781234 {
		t.Fatalf("little: got=0x%X want=0x56781234", got)
	}
}

func TestSplitCombine_RoundTrip(t *testing.T) {
	cases := map[int][]uint16{
		1: {0xBEEF},
		2: {0x0001, 0xFFFE},
		4: {0x1111, 0x2222, 0x3333, 0x4444},
	}

	for n, words := range cases {
		for _, order := range []ByteOrder{BigEndian, LittleEndian} {
			v := Combine(words, order)
			back := SplitUint(v, n, order)
			if !equalWords(back, words) {
				t.Fatalf("n=%d order=%s: split(combine(w)) = %v want %v", n, order, back, words)
			}
		}
	}
}

func TestCombineSplit_ValueRoundTrip(t *testing.T) {
	cases := []struct {
		n int
		v int64
	}{
		{1, 0},
		{1, 65535},
		{2, 70000},
		{2, 0x7FFFFFFF},
		{4, 0x0123456789ABCDEF},
	}

	for _, c := range cases {
		for _, order := range []ByteOrder{BigEndian, LittleEndian} {
			got := Combine(Split(c.v, c.n, order), order)
			if got != uint64(c.v) {
				t.Fatalf("n=%d v=%d order=%s: got=%d", c.n, c.v, order, got)
			}
		}
	}
}

func TestSplit_NegativeWrapsTwosComplement(t *testing.T) {
	got := Split(-1, 2, BigEndian)
	if !equalWords(got, []uint16{0xFFFF, 0xFFFF}) {
		t.Fatalf("got %v", got)
	}

	got = Split(-2, 1, BigEndian)
	if !equalWords(got, []uint16{0xFFFE}) {
		t.Fatalf("got %v", got)
	}
}

func TestSplit_MasksToWordCount(t *testing.T) {
	got := Split(0x12345, 1, BigEndian)
	if !equalWords(got, []uint16{0x2345}) {
		t.Fatalf("got %v", got)
	}
	if Split(5, 0, BigEndian) != nil {
		t.Fatalf("zero word count should yield nil")
	}
}

func TestFloat32_RoundTripBothOrders(t *testing.T) {
	const want = float32(123.456)

	for _, order := range []ByteOrder{BigEndian, LittleEndian} {
		words := SplitUint(FloatToRaw(want, order), 2, order)
		got := FloatFromRaw(Combine(words, order), order)
		if math.Abs(float64(got-want)) > 1e-6 {
			t.Fatalf("order=%s: got=%v want=%v", order, got, want)
		}
	}
}

func TestFloat32_BigEndianKnownLayout(t *testing.T) {
	// 1.0 = 0x3F800000
	got := FloatFromRaw(Combine([]uint16{0x3F80, 0x0000}, BigEndian), BigEndian)
	if got != 1.0 {
		t.Fatalf("got=%v want=1", got)
	}
}

func TestFloat32_LittleEndianNeedsByteReversal(t *testing.T) {
	// 1.0 is 0x3F800000; wire bytes 80 3F 00 00 decode to it as little-endian.
	words := []uint16{0x803F, 0x0000}
	raw := Combine(words, LittleEndian)

	if got := FloatFromRaw(raw, LittleEndian); got != 1.0 {
		t.Fatalf("byte-reversed decode got=%v want=1", got)
	}

	// Word swap alone yields something else.
	if swapped := math.Float32frombits(uint32(raw)); swapped == 1.0 {
		t.Fatalf("word swap alone must not decode correctly")
	}
}

func TestFloat32_WrongOrderIsWellDefined(t *testing.T) {
	want := float32(42.5)
	words := SplitUint(FloatToRaw(want, BigEndian), 2, BigEndian)

	got := FloatFromRaw(Combine(words, LittleEndian), LittleEndian)
	if got == want {
		t.Fatalf("wrong order should not recover the value")
	}
	// Deterministic across calls.
	again := FloatFromRaw(Combine(words, LittleEndian), LittleEndian)
	if math.Float32bits(got) != math.Float32bits(again) {
		t.Fatalf("decode is not deterministic")
	}
}

func TestDecode_FloatBypassesScale(t *testing.T) {
	words := SplitUint(FloatToRaw(2.5, BigEndian), 2, BigEndian)
	_, v := Decode(words, BigEndian, true, 10)
	if v != 2.5 {
		t.Fatalf("float decode got=%v want=2.5", v)
	}

	raw, v := Decode([]uint16{100}, BigEndian, false, 0.1)
	if raw != 100 || math.Abs(v-10) > 1e-9 {
		t.Fatalf("scaled decode raw=%d v=%v", raw, v)
	}
}
