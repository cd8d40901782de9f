package pulse

import "math/bits"

// ReadValue interprets bits[start..end] as an unsigned integer. Fields are
// carried most significant bit first, so bits[end] is the least significant
// bit of the value.
func ReadValue(b []uint8, start, end int) uint64 {
	var v uint64
	for i := start; i <= end; i++ {
		v <<= 1
		if b[i] == 1 {
			v |= 1
		}
	}
	return v
}

// ValueBits returns the minimal bit sequence for v, most significant bit
// first. Its length is floor(log2(v))+1; zero yields a single 0 bit.
func ValueBits(v uint64) []uint8 {
	n := bits.Len64(v)
	if n == 0 {
		return []uint8{0}
	}
	out := make([]uint8, n)
	for i := 0; i < n; i++ {
		out[i] = uint8((v >> uint(n-1-i)) & 1)
	}
	return out
}

// PlaceValue right-justifies v in a field window ending at end and calls set
// for every position that carries a 1 bit. Zero bits are never written: the
// canvas is already filled with the low waveform.
func PlaceValue(v uint64, end int, set func(bit int)) {
	seq := ValueBits(v)
	length := len(seq)
	for i, b := range seq {
		if b == 1 {
			set(end - length + i + 1)
		}
	}
}

// fits reports whether v can be represented in width bits.
func fits(v uint64, width int) bool {
	return bits.Len64(v) <= width
}
