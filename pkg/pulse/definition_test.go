package pulse

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
)

func layoutDefinition() Definition {
	return Definition{
		Name:    "test_layout",
		Length:  35,
		Epsilon: 0.075,
		Header:  Waveform{4750, 1535},
		Footer:  Waveform{7775},
		Low:     Waveform{320, 740},
		High:    Waveform{680, 400},
		Strategy: &FieldLayout{
			Fields: []Field{
				{Name: "id", Start: 0, End: 7},
				{Name: "sync", Start: 8, End: 11, Sync: true, Value: 5},
				{Name: "state", Start: 12, End: 15, States: []State{{Raw: 9, Name: "on"}, {Raw: 6, Name: "off"}}},
			},
		},
	}
}

func tableDefinition() Definition {
	return Definition{
		Name:          "test_table",
		Length:        10,
		Epsilon:       0.075,
		Footer:        Waveform{3005, 7175},
		Low:           Waveform{470, 1035},
		High:          Waveform{1035, 548},
		StartSequence: 1,
		Strategy: &PatternTable{
			Commands: []string{"A", "B"},
			States:   []string{"off", "on"},
			Rows: [][][]uint8{
				{{0, 0, 0, 1}, {0, 0, 1, 0}},
				{{0, 1, 0, 0}, {0, 1, 1, 0}},
			},
		},
	}
}

func TestNewDefinition(t *testing.T) {
	c := qt.New(t)

	def, err := NewDefinition(layoutDefinition())
	c.Assert(err, qt.IsNil)
	c.Assert(def.BinaryLength(), qt.Equals, 16)
	c.Assert(def.SignalLength(), qt.Equals, 2)

	def, err = NewDefinition(tableDefinition())
	c.Assert(err, qt.IsNil)
	c.Assert(def.BinaryLength(), qt.Equals, 4)
}

func TestNewDefinitionRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Definition)
	}{
		{"missing name", func(d *Definition) { d.Name = "" }},
		{"uneven payload", func(d *Definition) { d.Length = 36 }},
		{"mismatched bit waveforms", func(d *Definition) { d.High = Waveform{680} }},
		{"missing footer", func(d *Definition) { d.Footer = nil }},
		{"epsilon too large", func(d *Definition) { d.Epsilon = 1.5 }},
		{"no strategy", func(d *Definition) { d.Strategy = nil }},
		{"start sequence too long", func(d *Definition) { d.StartSequence = 17 }},
		{"field past end", func(d *Definition) {
			d.Strategy = &FieldLayout{Fields: []Field{{Name: "id", Start: 10, End: 16}}}
		}},
		{"duplicate field", func(d *Definition) {
			d.Strategy = &FieldLayout{Fields: []Field{{Name: "id", Start: 0, End: 1}, {Name: "id", Start: 2, End: 3}}}
		}},
		{"sync too wide", func(d *Definition) {
			d.Strategy = &FieldLayout{Fields: []Field{{Name: "sync", Start: 0, End: 1, Sync: true, Value: 4}}}
		}},
		{"flag waveform length", func(d *Definition) {
			d.Strategy = &FieldLayout{Flags: []Flag{{Name: "dim", Bit: 0, Waveform: Waveform{1}}}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := layoutDefinition()
			tt.mutate(&d)
			if _, err := NewDefinition(d); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestNewDefinitionRejectsBadTables(t *testing.T) {
	tests := []struct {
		name string
		rows [][][]uint8
	}{
		{"duplicate rows", [][][]uint8{{{0, 0, 0, 1}, {0, 0, 1, 0}}, {{0, 0, 0, 1}, {0, 1, 1, 0}}}},
		{"short row", [][][]uint8{{{0, 0, 1}, {0, 0, 1, 0}}, {{0, 1, 0, 0}, {0, 1, 1, 0}}}},
		{"missing state", [][][]uint8{{{0, 0, 0, 1}}, {{0, 1, 0, 0}, {0, 1, 1, 0}}}},
		{"non-binary", [][][]uint8{{{0, 0, 0, 2}, {0, 0, 1, 0}}, {{0, 1, 0, 0}, {0, 1, 1, 0}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tableDefinition()
			d.Strategy.(*PatternTable).Rows = tt.rows
			if _, err := NewDefinition(d); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestMustDefinitionPanics(t *testing.T) {
	c := qt.New(t)
	d := layoutDefinition()
	d.Length = 0
	c.Assert(func() { MustDefinition(d) }, qt.PanicMatches, ".*payload pulses.*")
}

func TestDefinitionEncodeDoesNotEmitOnError(t *testing.T) {
	c := qt.New(t)
	def := MustDefinition(layoutDefinition())

	f := NewFields()
	f.Values["id"] = 300 // 9 bits in an 8-bit field
	f.States["state"] = "on"

	train, err := def.Encode(f)
	c.Assert(train, qt.IsNil)
	var reqErr *RequestError
	c.Assert(errors.As(err, &reqErr), qt.IsTrue)
	c.Assert(reqErr.Field, qt.Equals, "id")
	c.Assert(err, qt.ErrorIs, ErrOutOfRange)
}
