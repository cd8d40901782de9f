package protocols

import (
	"github.com/dbehnke/rf-nexus/pkg/pulse"
)

var voltomatButtons = []string{"A", "B", "C", "D"}

var voltomatDefinition = pulse.MustDefinition(pulse.Definition{
	Name:          "voltomat",
	Length:        50,
	Epsilon:       0.075,
	Footer:        pulse.Waveform{3005, 7175},
	Low:           pulse.Waveform{470, 1035},
	High:          pulse.Waveform{1035, 548},
	StartSequence: 4,
	Strategy: &pulse.PatternTable{
		Commands: voltomatButtons,
		States:   []string{"off", "on"},
		Rows: [][][]uint8{
			{ // A
				{0, 0, 0, 0, 1, 1, 0, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0},
				{0, 0, 0, 0, 0, 1, 1, 0, 1, 1, 1, 0, 1, 0, 1, 0, 0, 0, 1, 1, 0, 0, 0, 0},
			},
			{ // B
				{0, 0, 0, 0, 1, 1, 0, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 1, 0, 0},
				{0, 0, 0, 0, 1, 1, 1, 0, 0, 1, 1, 0, 0, 0, 1, 0, 0, 1, 1, 1, 0, 1, 0, 0},
			},
			{ // C
				{0, 0, 0, 0, 1, 1, 0, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 1, 1, 0, 0},
				{0, 0, 0, 0, 0, 1, 1, 0, 1, 1, 1, 0, 1, 0, 1, 0, 0, 0, 1, 1, 1, 1, 0, 0},
			},
			{ // D
				{0, 0, 0, 0, 1, 1, 1, 0, 0, 1, 1, 0, 0, 0, 1, 0, 0, 1, 1, 1, 0, 0, 1, 0},
				{0, 0, 0, 0, 1, 1, 0, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 1, 0},
			},
		},
	},
})

// Voltomat decodes and encodes the four-button Voltomat power switch remote.
// Each button/state pair is a fixed pre-recorded code.
type Voltomat struct {
	def *pulse.Definition
}

// NewVoltomat returns the Voltomat switch protocol.
func NewVoltomat(opts ...Option) *Voltomat {
	return &Voltomat{def: buildOptions(opts).definition(voltomatDefinition)}
}

func (p *Voltomat) Name() string                  { return p.def.Name }
func (p *Voltomat) Description() string           { return "Voltomat power switch" }
func (p *Voltomat) Definition() *pulse.Definition { return p.def }

func (p *Voltomat) Validate(t pulse.Train) error {
	return p.def.Validate(t)
}

func (p *Voltomat) Decode(t pulse.Train) Result {
	f, err := p.def.Decode(t)
	if err != nil {
		return NoMatch(err)
	}
	return Matched(Message{
		ID:    f.State(pulse.CommandField),
		State: f.State(pulse.StateField),
	})
}

func (p *Voltomat) Encode(req Request) (pulse.Train, Message, error) {
	button, err := voltomatButton(req)
	if err != nil {
		return nil, Message{}, err
	}
	state, err := oneOf("state", "off", "on", req.Off, req.On)
	if err != nil {
		return nil, Message{}, err
	}

	f := pulse.NewFields()
	f.States[pulse.CommandField] = button
	f.States[pulse.StateField] = state
	train, err := p.def.Encode(f)
	if err != nil {
		return nil, Message{}, err
	}
	return train, Message{ID: button, State: state}, nil
}

// voltomatButton accepts either a button letter or its numeric index.
func voltomatButton(req Request) (string, error) {
	byIndex := ""
	if req.ID != nil {
		if *req.ID < 0 || *req.ID >= len(voltomatButtons) {
			return "", pulse.OutOfRange("id")
		}
		byIndex = voltomatButtons[*req.ID]
	}
	switch {
	case req.Button == "" && byIndex == "":
		return "", pulse.Missing("button")
	case req.Button == "":
		return byIndex, nil
	case byIndex != "" && byIndex != req.Button:
		return "", pulse.Conflicting("button")
	}
	for _, b := range voltomatButtons {
		if b == req.Button {
			return b, nil
		}
	}
	return "", pulse.OutOfRange("button")
}
