package pulse

import "fmt"

// Validate checks the structure of t: its length, header, footer and the
// optional start sequence. Payload bits are never inspected.
func (d *Definition) Validate(t Train) error {
	if len(t) != d.Length {
		return fmt.Errorf("%w: got %d pulses, want %d", ErrLengthMismatch, len(t), d.Length)
	}
	if len(d.Header) > 0 && !d.Header.Matches(t, 0, d.Epsilon) {
		return fmt.Errorf("%w: %v", ErrHeaderMismatch, []int(t[:len(d.Header)]))
	}
	footerAt := d.Length - len(d.Footer)
	if !d.Footer.Matches(t, footerAt, d.Epsilon) {
		return fmt.Errorf("%w: %v", ErrFooterMismatch, []int(t[footerAt:]))
	}
	for bit := 0; bit < d.StartSequence; bit++ {
		if d.High.Matches(t, d.bitOffset(bit), d.Epsilon) {
			return fmt.Errorf("%w: bit %d is high", ErrStartSequenceMismatch, bit)
		}
	}
	return nil
}

// Canvas is the output buffer of one encode call.
type Canvas struct {
	def   *Definition
	train Train
}

// newCanvas allocates a train of the declared length with the low waveform
// at every bit position and the header in place.
func (d *Definition) newCanvas() *Canvas {
	c := &Canvas{def: d, train: make(Train, d.Length)}
	for bit := 0; bit < d.binaryLength; bit++ {
		c.Write(bit, d.Low)
	}
	copy(c.train, d.Header)
	return c
}

// Write places w at the given bit position.
func (c *Canvas) Write(bit int, w Waveform) {
	copy(c.train[c.def.bitOffset(bit):], w)
}

// Set writes the high or low waveform at the given bit position.
func (c *Canvas) Set(bit int, high bool) {
	if high {
		c.Write(bit, c.def.High)
		return
	}
	c.Write(bit, c.def.Low)
}

func (c *Canvas) finish() Train {
	copy(c.train[c.def.Length-len(c.def.Footer):], c.def.Footer)
	return c.train
}
