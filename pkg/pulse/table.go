package pulse

import (
	"bytes"
	"fmt"
)

// Names of the two dimensions of a pattern table in Fields.
const (
	CommandField = "command"
	StateField   = "state"
)

// PatternTable decodes by exact match against pre-recorded bit sequences,
// one per (command, state) pair.
type PatternTable struct {
	Commands []string
	States   []string
	Rows     [][][]uint8 // [command][state] -> one bit per position
}

// Lookup returns the bit sequence for a (command, state) pair.
func (p *PatternTable) Lookup(command, state int) ([]uint8, bool) {
	if command < 0 || command >= len(p.Rows) || state < 0 || state >= len(p.Rows[command]) {
		return nil, false
	}
	return p.Rows[command][state], true
}

// Match returns the first entry equal to bits, scanning commands and then
// states in ascending order.
func (p *PatternTable) Match(bits BinaryVector) (command, state int, ok bool) {
	for c, row := range p.Rows {
		for s, pattern := range row {
			if bytes.Equal(pattern, bits) {
				return c, s, true
			}
		}
	}
	return -1, -1, false
}

func (p *PatternTable) check(d *Definition) error {
	if len(p.Commands) == 0 || len(p.States) == 0 {
		return fmt.Errorf("pattern table needs commands and states")
	}
	if len(p.Rows) != len(p.Commands) {
		return fmt.Errorf("pattern table has %d rows for %d commands", len(p.Rows), len(p.Commands))
	}
	seen := make(map[string]string)
	for c, row := range p.Rows {
		if len(row) != len(p.States) {
			return fmt.Errorf("command %s has %d states, want %d", p.Commands[c], len(row), len(p.States))
		}
		for s, pattern := range row {
			if len(pattern) != d.binaryLength {
				return fmt.Errorf("pattern %s/%s has %d bits, want %d",
					p.Commands[c], p.States[s], len(pattern), d.binaryLength)
			}
			for _, b := range pattern {
				if b > 1 {
					return fmt.Errorf("pattern %s/%s contains non-binary value %d", p.Commands[c], p.States[s], b)
				}
			}
			key := string(pattern)
			name := p.Commands[c] + "/" + p.States[s]
			if prev, dup := seen[key]; dup {
				return fmt.Errorf("pattern %s duplicates %s", name, prev)
			}
			seen[key] = name
		}
	}
	return nil
}

func (p *PatternTable) alternate(*Frame, int) bool {
	return false
}

func (p *PatternTable) decode(fr *Frame) (Fields, error) {
	c, s, ok := p.Match(fr.Bits)
	if !ok {
		return Fields{}, &FieldError{Field: CommandField, Err: ErrNoPattern}
	}
	out := NewFields()
	out.Values[CommandField] = uint64(c)
	out.Values[StateField] = uint64(s)
	out.States[CommandField] = p.Commands[c]
	out.States[StateField] = p.States[s]
	return out, nil
}

func (p *PatternTable) encode(in Fields, c *Canvas) error {
	cmd, err := index(in, CommandField, p.Commands)
	if err != nil {
		return err
	}
	state, err := index(in, StateField, p.States)
	if err != nil {
		return err
	}
	pattern, _ := p.Lookup(cmd, state)
	for bit, b := range pattern {
		c.Set(bit, b == 1)
	}
	return nil
}

// index resolves a table dimension by name, or by raw index when no name
// was given.
func index(in Fields, field string, names []string) (int, error) {
	if name, ok := in.States[field]; ok {
		for i, n := range names {
			if n == name {
				return i, nil
			}
		}
		return 0, OutOfRange(field)
	}
	v, ok := in.Values[field]
	if !ok {
		return 0, Missing(field)
	}
	if v >= uint64(len(names)) {
		return 0, OutOfRange(field)
	}
	return int(v), nil
}
