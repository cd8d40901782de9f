package pulse

// Fields carries the values extracted from, or written to, a binary vector.
type Fields struct {
	Values map[string]uint64 // raw numeric field values
	States map[string]string // enumerated field values by name
	Flags  map[string]bool   // alternate waveforms present at a flag position
}

// NewFields returns an empty, writable Fields.
func NewFields() Fields {
	return Fields{
		Values: make(map[string]uint64),
		States: make(map[string]string),
		Flags:  make(map[string]bool),
	}
}

// Value returns the raw value of a field and whether it was set.
func (f Fields) Value(name string) (uint64, bool) {
	v, ok := f.Values[name]
	return v, ok
}

// State returns the enumerated value of a field, or "".
func (f Fields) State(name string) string {
	return f.States[name]
}

// Flag reports whether a flag is set.
func (f Fields) Flag(name string) bool {
	return f.Flags[name]
}
