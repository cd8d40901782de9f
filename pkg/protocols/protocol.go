// Package protocols holds the supported 433 MHz device families and their
// validate/decode/encode entry points.
package protocols

import (
	"github.com/dbehnke/rf-nexus/pkg/pulse"
)

// Message is a decoded device command. Its JSON form is what the API, the
// MQTT events and the CLI emit.
type Message struct {
	ID       string `json:"id" yaml:"id"`
	Channel  *int   `json:"channel,omitempty" yaml:"channel,omitempty"`
	Unit     *int   `json:"unit,omitempty" yaml:"unit,omitempty"`
	All      bool   `json:"all,omitempty" yaml:"all,omitempty"`
	State    string `json:"state,omitempty" yaml:"state,omitempty"`
	DimLevel *int   `json:"dimlevel,omitempty" yaml:"dimlevel,omitempty"`
}

// Request holds the already-parsed fields of an encode request.
type Request struct {
	ID       *int   `json:"id,omitempty" yaml:"id,omitempty"`
	Button   string `json:"button,omitempty" yaml:"button,omitempty"`
	Channel  *int   `json:"channel,omitempty" yaml:"channel,omitempty"`
	Unit     *int   `json:"unit,omitempty" yaml:"unit,omitempty"`
	DimLevel *int   `json:"dimlevel,omitempty" yaml:"dimlevel,omitempty"`
	All      bool   `json:"all,omitempty" yaml:"all,omitempty"`
	On       bool   `json:"on,omitempty" yaml:"on,omitempty"`
	Off      bool   `json:"off,omitempty" yaml:"off,omitempty"`
	Up       bool   `json:"up,omitempty" yaml:"up,omitempty"`
	Down     bool   `json:"down,omitempty" yaml:"down,omitempty"`
}

// Result is the outcome of a decode: either a matched message or the reason
// the train does not belong to the protocol. A miss is not a fault.
type Result struct {
	Message Message
	Matched bool
	Reason  error
}

// Matched wraps a decoded message.
func Matched(m Message) Result {
	return Result{Message: m, Matched: true}
}

// NoMatch wraps the reason a train was not recognised.
func NoMatch(reason error) Result {
	return Result{Reason: reason}
}

// Protocol is one supported device family.
type Protocol interface {
	Name() string
	Description() string
	Definition() *pulse.Definition

	// Validate checks the train structure only: length, header, footer.
	Validate(t pulse.Train) error

	// Decode validates and demodulates t.
	Decode(t pulse.Train) Result

	// Encode checks req and builds the pulse train together with the
	// message a receiver would decode from it.
	Encode(req Request) (pulse.Train, Message, error)
}

// Int returns a pointer to v, for building requests and messages.
func Int(v int) *int {
	return &v
}

// requireInt checks that a numeric request field is present and in range.
func requireInt(field string, v *int, min, max int) (int, error) {
	if v == nil {
		return 0, pulse.Missing(field)
	}
	if *v < min || *v > max {
		return 0, pulse.OutOfRange(field)
	}
	return *v, nil
}

// oneOf picks exactly one of two mutually exclusive state flags.
func oneOf(field, a, b string, hasA, hasB bool) (string, error) {
	switch {
	case hasA && hasB:
		return "", pulse.Conflicting(field)
	case hasA:
		return a, nil
	case hasB:
		return b, nil
	default:
		return "", pulse.Missing(field)
	}
}

// Option configures a protocol instance.
type Option func(*options)

type options struct {
	strictBits bool
}

// StrictBits makes decode reject bit positions that match neither the low
// nor the high waveform instead of reading them as 0.
func StrictBits(on bool) Option {
	return func(o *options) {
		o.strictBits = on
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) definition(def *pulse.Definition) *pulse.Definition {
	if o.strictBits {
		return def.WithStrictBits(true)
	}
	return def
}
