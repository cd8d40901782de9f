package pulse

import "fmt"

// Frame is a structurally valid train together with its demodulated bits.
type Frame struct {
	def     *Definition
	train   Train
	Bits    BinaryVector
	Unknown []int // bit positions that matched neither low nor high
}

// Demodulate classifies every bit position of t against the low and high
// waveforms. Positions that match neither read as 0 and are listed in
// Frame.Unknown. t must already have passed Validate.
func Demodulate(d *Definition, t Train) *Frame {
	fr := &Frame{def: d, train: t, Bits: make(BinaryVector, d.binaryLength)}
	for bit := range fr.Bits {
		off := d.bitOffset(bit)
		switch {
		case d.Low.Matches(t, off, d.Epsilon):
			fr.Bits[bit] = 0
		case d.High.Matches(t, off, d.Epsilon):
			fr.Bits[bit] = 1
		default:
			fr.Unknown = append(fr.Unknown, bit)
		}
	}
	return fr
}

// Matches reports whether w is present at the given bit position.
func (fr *Frame) Matches(bit int, w Waveform) bool {
	return w.Matches(fr.train, fr.def.bitOffset(bit), fr.def.Epsilon)
}

// frame demodulates t and applies the ambiguous-bit policy.
func (d *Definition) frame(t Train) (*Frame, error) {
	fr := Demodulate(d, t)
	if !d.StrictBits {
		return fr, nil
	}
	for _, bit := range fr.Unknown {
		if !d.Strategy.alternate(fr, bit) {
			return nil, &FieldError{Field: fmt.Sprintf("bit%d", bit), Err: ErrAmbiguousBit}
		}
	}
	return fr, nil
}
