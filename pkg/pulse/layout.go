package pulse

import "fmt"

// State maps one raw field value to its semantic name.
type State struct {
	Raw  uint64
	Name string
}

// Field is a named region bits[Start..End] of a binary vector.
type Field struct {
	Name  string
	Start int
	End   int

	// Sync fields must decode to Value and are always encoded from it.
	Sync  bool
	Value uint64

	// States, when set, restricts the field to these raw values.
	States []State
}

// Width returns the number of bits in the field.
func (f Field) Width() int {
	return f.End - f.Start + 1
}

func (f Field) stateName(raw uint64) (string, bool) {
	for _, s := range f.States {
		if s.Raw == raw {
			return s.Name, true
		}
	}
	return "", false
}

func (f Field) stateRaw(name string) (uint64, bool) {
	for _, s := range f.States {
		if s.Name == name {
			return s.Raw, true
		}
	}
	return 0, false
}

// Flag is a bit position that may carry a third, protocol-specific waveform
// instead of low or high.
type Flag struct {
	Name     string
	Bit      int
	Waveform Waveform
}

// FieldLayout decodes named fields at fixed bit offsets.
type FieldLayout struct {
	Fields []Field
	Flags  []Flag
}

// Field returns the named field.
func (l *FieldLayout) Field(name string) (Field, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (l *FieldLayout) check(d *Definition) error {
	seen := make(map[string]bool)
	for _, f := range l.Fields {
		if f.Name == "" || seen[f.Name] {
			return fmt.Errorf("field %q: empty or duplicate name", f.Name)
		}
		seen[f.Name] = true
		if f.Start < 0 || f.End < f.Start || f.End >= d.binaryLength {
			return fmt.Errorf("field %s: bits %d..%d outside 0..%d", f.Name, f.Start, f.End, d.binaryLength-1)
		}
		if f.Width() > 64 {
			return fmt.Errorf("field %s: %d bits do not fit a uint64", f.Name, f.Width())
		}
		if f.Sync && !fits(f.Value, f.Width()) {
			return fmt.Errorf("field %s: sync value %d does not fit %d bits", f.Name, f.Value, f.Width())
		}
		for _, s := range f.States {
			if !fits(s.Raw, f.Width()) {
				return fmt.Errorf("field %s: state %s value %d does not fit %d bits", f.Name, s.Name, s.Raw, f.Width())
			}
		}
	}
	for _, fl := range l.Flags {
		if fl.Bit < 0 || fl.Bit >= d.binaryLength {
			return fmt.Errorf("flag %s: bit %d out of range", fl.Name, fl.Bit)
		}
		if len(fl.Waveform) != len(d.Low) {
			return fmt.Errorf("flag %s: waveform must be %d pulses", fl.Name, len(d.Low))
		}
	}
	return nil
}

func (l *FieldLayout) alternate(fr *Frame, bit int) bool {
	for _, fl := range l.Flags {
		if fl.Bit == bit && fr.Matches(bit, fl.Waveform) {
			return true
		}
	}
	return false
}

func (l *FieldLayout) decode(fr *Frame) (Fields, error) {
	out := NewFields()
	for _, fl := range l.Flags {
		out.Flags[fl.Name] = fr.Matches(fl.Bit, fl.Waveform)
	}
	for _, f := range l.Fields {
		v := ReadValue(fr.Bits, f.Start, f.End)
		if f.Sync && v != f.Value {
			return Fields{}, &FieldError{Field: f.Name, Err: ErrSyncMismatch}
		}
		if len(f.States) > 0 {
			name, ok := f.stateName(v)
			if !ok {
				return Fields{}, &FieldError{Field: f.Name, Err: ErrInvalidState}
			}
			out.States[f.Name] = name
		}
		out.Values[f.Name] = v
	}
	return out, nil
}

func (l *FieldLayout) encode(in Fields, c *Canvas) error {
	values := make([]uint64, len(l.Fields))
	for i, f := range l.Fields {
		switch {
		case f.Sync:
			values[i] = f.Value
		case len(f.States) > 0:
			name, ok := in.States[f.Name]
			if !ok {
				return Missing(f.Name)
			}
			raw, ok := f.stateRaw(name)
			if !ok {
				return OutOfRange(f.Name)
			}
			values[i] = raw
		default:
			v, ok := in.Values[f.Name]
			if !ok {
				return Missing(f.Name)
			}
			if !fits(v, f.Width()) {
				return OutOfRange(f.Name)
			}
			values[i] = v
		}
	}
	for i, f := range l.Fields {
		PlaceValue(values[i], f.End, func(bit int) {
			c.Set(bit, true)
		})
	}
	for _, fl := range l.Flags {
		if in.Flags[fl.Name] {
			c.Write(fl.Bit, fl.Waveform)
		}
	}
	return nil
}
