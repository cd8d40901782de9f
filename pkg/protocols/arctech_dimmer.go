package protocols

import (
	"strconv"

	"github.com/dbehnke/rf-nexus/pkg/pulse"
)

// arctechPulse is the base period of the self-learning arctech family.
const arctechPulse = 300

const (
	arctechMaxID       = 67108863 // 26-bit id field
	arctechMaxUnit     = 15
	arctechMaxDimLevel = 15
	arctechDimFlag     = "dim"
)

var arctechDimmerDefinition = pulse.MustDefinition(pulse.Definition{
	Name:    "arctech_dimmer",
	Length:  148,
	Epsilon: 0.2,
	Header:  pulse.Waveform{arctechPulse, 10 * arctechPulse},
	Footer:  pulse.Waveform{arctechPulse, 38 * arctechPulse},
	Low:     pulse.Waveform{arctechPulse, arctechPulse, arctechPulse, 5 * arctechPulse},
	High:    pulse.Waveform{arctechPulse, 5 * arctechPulse, arctechPulse, arctechPulse},
	Strategy: &pulse.FieldLayout{
		Fields: []pulse.Field{
			{Name: "id", Start: 0, End: 25},
			{Name: "all", Start: 26, End: 26},
			{Name: "state", Start: 27, End: 27, States: []pulse.State{
				{Raw: 0, Name: "off"},
				{Raw: 1, Name: "on"},
			}},
			{Name: "unit", Start: 28, End: 31},
			{Name: "dimlevel", Start: 32, End: 35},
		},
		// An absolute dim command replaces the state bit with four short
		// pulses.
		Flags: []pulse.Flag{
			{Name: arctechDimFlag, Bit: 27, Waveform: pulse.Waveform{arctechPulse, arctechPulse, arctechPulse, arctechPulse}},
		},
	},
})

// ArctechDimmer decodes and encodes self-learning KlikAanKlikUit style
// dimmers, including absolute dim levels.
type ArctechDimmer struct {
	def *pulse.Definition
}

// NewArctechDimmer returns the arctech dimmer protocol.
func NewArctechDimmer(opts ...Option) *ArctechDimmer {
	return &ArctechDimmer{def: buildOptions(opts).definition(arctechDimmerDefinition)}
}

func (p *ArctechDimmer) Name() string                  { return p.def.Name }
func (p *ArctechDimmer) Description() string           { return "KlikAanKlikUit dimmer" }
func (p *ArctechDimmer) Definition() *pulse.Definition { return p.def }

func (p *ArctechDimmer) Validate(t pulse.Train) error {
	return p.def.Validate(t)
}

func (p *ArctechDimmer) Decode(t pulse.Train) Result {
	f, err := p.def.Decode(t)
	if err != nil {
		return NoMatch(err)
	}
	msg := Message{
		ID:    strconv.FormatUint(f.Values["id"], 10),
		Unit:  Int(int(f.Values["unit"])),
		All:   f.Values["all"] == 1,
		State: f.State("state"),
	}
	if f.Flag(arctechDimFlag) {
		msg.State = "on"
		msg.DimLevel = Int(int(f.Values["dimlevel"]))
	}
	return Matched(msg)
}

func (p *ArctechDimmer) Encode(req Request) (pulse.Train, Message, error) {
	id, err := requireInt("id", req.ID, 1, arctechMaxID)
	if err != nil {
		return nil, Message{}, err
	}
	unit := 0
	if req.Unit != nil || !req.All {
		if unit, err = requireInt("unit", req.Unit, 0, arctechMaxUnit); err != nil {
			return nil, Message{}, err
		}
	}

	dim := req.DimLevel != nil
	var state string
	switch {
	case dim && req.Off:
		return nil, Message{}, pulse.Conflicting("dimlevel")
	case dim:
		// on alongside a level is redundant, not conflicting
		if _, err := requireInt("dimlevel", req.DimLevel, 0, arctechMaxDimLevel); err != nil {
			return nil, Message{}, err
		}
	default:
		if state, err = oneOf("state", "on", "off", req.On, req.Off); err != nil {
			return nil, Message{}, err
		}
	}

	f := pulse.NewFields()
	f.Values["id"] = uint64(id)
	f.Values["unit"] = uint64(unit)
	f.Values["all"] = 0
	if req.All {
		f.Values["all"] = 1
	}
	f.Values["dimlevel"] = 0
	if dim {
		f.Values["dimlevel"] = uint64(*req.DimLevel)
		f.Flags[arctechDimFlag] = true
		// The flag waveform overwrites the state bit.
		f.States["state"] = "off"
	} else {
		f.States["state"] = state
	}

	train, err := p.def.Encode(f)
	if err != nil {
		return nil, Message{}, err
	}
	msg := Message{
		ID:    strconv.Itoa(id),
		Unit:  Int(unit),
		All:   req.All,
		State: "on",
	}
	if dim {
		msg.DimLevel = Int(*req.DimLevel)
	} else {
		msg.State = state
	}
	return train, msg, nil
}
