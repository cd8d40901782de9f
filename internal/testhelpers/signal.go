package testhelpers

import (
	"github.com/dbehnke/rf-nexus/pkg/pulse"
)

// BuildTrain assembles a raw train for def from a binary vector: header,
// one low or high waveform per bit, footer. No validation is done, so tests
// can build trains a protocol must reject.
func BuildTrain(def *pulse.Definition, bits []uint8) pulse.Train {
	t := make(pulse.Train, 0, def.Length)
	t = append(t, def.Header...)
	for _, b := range bits {
		if b == 1 {
			t = append(t, def.High...)
		} else {
			t = append(t, def.Low...)
		}
	}
	return append(t, def.Footer...)
}

// BitOffset returns the train index of the first duration of a bit.
func BitOffset(def *pulse.Definition, bit int) int {
	return len(def.Header) + bit*len(def.Low)
}

// ReplaceBit returns a copy of t with the waveform at bit swapped for w.
func ReplaceBit(def *pulse.Definition, t pulse.Train, bit int, w pulse.Waveform) pulse.Train {
	out := t.Clone()
	copy(out[BitOffset(def, bit):], w)
	return out
}

// Jitter returns a copy of t with every duration moved by fraction of its
// value, alternating up and down the way a real receiver drifts.
func Jitter(t pulse.Train, fraction float64) pulse.Train {
	out := t.Clone()
	for i, d := range out {
		delta := int(float64(d) * fraction)
		if i%2 == 0 {
			out[i] = d + delta
		} else {
			out[i] = d - delta
		}
	}
	return out
}
