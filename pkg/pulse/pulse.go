// Package pulse converts timed high/low pulse trains to and from structured
// field values. A Definition describes one device family: its timing,
// framing and either a bit-field layout or a pattern table.
package pulse

// Train is an ordered sequence of pulse durations in microseconds.
type Train []int

// Waveform is a short fixed run of durations that denotes a header, a footer
// or a single logical bit.
type Waveform []int

// BinaryVector holds one demodulated bit (0 or 1) per bit position.
type BinaryVector []uint8

// InRange reports whether observed lies within epsilon of reference. Both
// bounds are truncated toward zero, not rounded.
func InRange(observed, reference int, epsilon float64) bool {
	lower := int(float64(reference) * (1.0 - epsilon))
	upper := int(float64(reference) * (1.0 + epsilon))
	return observed >= lower && observed <= upper
}

// Matches reports whether every duration of w matches t starting at offset.
func (w Waveform) Matches(t Train, offset int, epsilon float64) bool {
	if len(w) == 0 || offset < 0 || offset+len(w) > len(t) {
		return false
	}
	for i, d := range w {
		if !InRange(t[offset+i], d, epsilon) {
			return false
		}
	}
	return true
}

// Clone returns a copy of the train that shares no storage with t.
func (t Train) Clone() Train {
	out := make(Train, len(t))
	copy(out, t)
	return out
}
