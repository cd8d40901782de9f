package pulse

import "fmt"

// Strategy is the demodulation variant of a Definition: a *FieldLayout or a
// *PatternTable.
type Strategy interface {
	check(d *Definition) error
	decode(fr *Frame) (Fields, error)
	encode(f Fields, c *Canvas) error
	alternate(fr *Frame, bit int) bool
}

// Definition is the read-only configuration of one device family.
type Definition struct {
	Name    string
	Length  int     // exact number of pulses in a train
	Epsilon float64 // relative tolerance for every duration

	Header Waveform
	Footer Waveform
	Low    Waveform
	High   Waveform

	// StartSequence is the number of leading bits that must not be high.
	StartSequence int

	// StrictBits makes a bit that matches neither Low nor High fail the
	// decode with ErrAmbiguousBit. Otherwise the bit reads as 0.
	StrictBits bool

	Strategy Strategy

	binaryLength int
}

// NewDefinition checks every size and index in d against the train length
// and returns a copy ready for use.
func NewDefinition(d Definition) (*Definition, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("definition: name is required")
	}
	if d.Epsilon < 0 || d.Epsilon >= 1 {
		return nil, fmt.Errorf("definition %s: epsilon %v must be in [0,1)", d.Name, d.Epsilon)
	}
	if len(d.Low) == 0 || len(d.Low) != len(d.High) {
		return nil, fmt.Errorf("definition %s: low and high waveforms must have the same non-zero length", d.Name)
	}
	if len(d.Footer) == 0 {
		return nil, fmt.Errorf("definition %s: footer is required", d.Name)
	}
	payload := d.Length - len(d.Header) - len(d.Footer)
	if payload <= 0 || payload%len(d.Low) != 0 {
		return nil, fmt.Errorf("definition %s: %d payload pulses do not divide into %d-pulse bits",
			d.Name, payload, len(d.Low))
	}
	d.binaryLength = payload / len(d.Low)
	if d.StartSequence < 0 || d.StartSequence > d.binaryLength {
		return nil, fmt.Errorf("definition %s: start sequence %d out of range", d.Name, d.StartSequence)
	}
	if d.Strategy == nil {
		return nil, fmt.Errorf("definition %s: a field layout or pattern table is required", d.Name)
	}
	if err := d.Strategy.check(&d); err != nil {
		return nil, fmt.Errorf("definition %s: %w", d.Name, err)
	}
	return &d, nil
}

// MustDefinition is NewDefinition for package-level protocol tables.
func MustDefinition(d Definition) *Definition {
	def, err := NewDefinition(d)
	if err != nil {
		panic(err)
	}
	return def
}

// WithStrictBits returns a copy of d with the ambiguous-bit policy set.
// The strategy is shared; definitions are never mutated after construction.
func (d *Definition) WithStrictBits(on bool) *Definition {
	c := *d
	c.StrictBits = on
	return &c
}

// BinaryLength returns the number of bit positions in a train.
func (d *Definition) BinaryLength() int {
	return d.binaryLength
}

// SignalLength returns the number of pulses that make up one bit.
func (d *Definition) SignalLength() int {
	return len(d.Low)
}

func (d *Definition) bitOffset(bit int) int {
	return len(d.Header) + bit*len(d.Low)
}

// Decode validates the frame, demodulates it and extracts its fields.
func (d *Definition) Decode(t Train) (Fields, error) {
	if err := d.Validate(t); err != nil {
		return Fields{}, err
	}
	fr, err := d.frame(t)
	if err != nil {
		return Fields{}, err
	}
	return d.Strategy.decode(fr)
}

// Encode builds a fresh train from f. No train is returned on error.
func (d *Definition) Encode(f Fields) (Train, error) {
	c := d.newCanvas()
	if err := d.Strategy.encode(f, c); err != nil {
		return nil, err
	}
	return c.finish(), nil
}
