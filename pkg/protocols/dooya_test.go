package protocols_test

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/dbehnke/rf-nexus/internal/testhelpers"
	"github.com/dbehnke/rf-nexus/pkg/protocols"
	"github.com/dbehnke/rf-nexus/pkg/pulse"
)

func highBits(def *pulse.Definition, t pulse.Train) []int {
	var out []int
	for bit, b := range pulse.Demodulate(def, t).Bits {
		if b == 1 {
			out = append(out, bit)
		}
	}
	return out
}

func TestDooyaEncode(t *testing.T) {
	c := qt.New(t)
	p := protocols.NewDooya()

	train, msg, err := p.Encode(protocols.Request{
		ID:      protocols.Int(100),
		Channel: protocols.Int(5),
		Up:      true,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(train, qt.HasLen, 83)
	c.Assert(msg, qt.DeepEquals, protocols.Message{ID: "100", Channel: protocols.Int(5), State: "up"})

	// channel 5, sync1 6, id 100, sync2 1, state 51
	c.Assert(highBits(p.Definition(), train), qt.DeepEquals,
		[]int{5, 7, 13, 14, 21, 22, 25, 31, 34, 35, 38, 39})

	res := p.Decode(train)
	c.Assert(res.Matched, qt.IsTrue)
	c.Assert(res.Message, qt.DeepEquals, msg)
}

func TestDooyaRoundTrip(t *testing.T) {
	c := qt.New(t)
	p := protocols.NewDooya()

	for id := 0; id <= 4095; id += 315 {
		for channel := 0; channel <= 255; channel += 51 {
			for _, up := range []bool{true, false} {
				req := protocols.Request{
					ID:      protocols.Int(id),
					Channel: protocols.Int(channel),
					Up:      up,
					Down:    !up,
				}
				train, want, err := p.Encode(req)
				c.Assert(err, qt.IsNil)
				res := p.Decode(train)
				c.Assert(res.Matched, qt.IsTrue, qt.Commentf("id=%d channel=%d up=%v", id, channel, up))
				c.Assert(res.Message, qt.DeepEquals, want)
			}
		}
	}
}

func TestDooyaDecodeTolerance(t *testing.T) {
	c := qt.New(t)
	p := protocols.NewDooya()
	train, want, err := p.Encode(protocols.Request{ID: protocols.Int(4095), Channel: protocols.Int(255), Down: true})
	c.Assert(err, qt.IsNil)

	res := p.Decode(testhelpers.Jitter(train, 0.05))
	c.Assert(res.Matched, qt.IsTrue)
	c.Assert(res.Message, qt.DeepEquals, want)

	res = p.Decode(testhelpers.Jitter(train, 0.1))
	c.Assert(res.Matched, qt.IsFalse)
	c.Assert(pulse.IsFrameError(res.Reason), qt.IsTrue)
}

func TestDooyaRejectsBadSync(t *testing.T) {
	c := qt.New(t)
	p := protocols.NewDooya()
	def := p.Definition()
	train, _, err := p.Encode(protocols.Request{ID: protocols.Int(7), Channel: protocols.Int(1), Up: true})
	c.Assert(err, qt.IsNil)

	// sync1 is 00000110; raising bit 8 breaks it without touching the frame
	bad := testhelpers.ReplaceBit(def, train, 8, def.High)
	c.Assert(p.Validate(bad), qt.IsNil)

	res := p.Decode(bad)
	c.Assert(res.Matched, qt.IsFalse)
	c.Assert(res.Reason, qt.ErrorIs, pulse.ErrSyncMismatch)

	var fieldErr *pulse.FieldError
	c.Assert(errors.As(res.Reason, &fieldErr), qt.IsTrue)
	c.Assert(fieldErr.Field, qt.Equals, "sync1")
}

func TestDooyaRejectsUnknownState(t *testing.T) {
	c := qt.New(t)
	p := protocols.NewDooya()

	bits := make([]uint8, 40)
	bits[13], bits[14] = 1, 1 // sync1 = 6
	bits[31] = 1              // sync2 = 1
	bits[39] = 1              // state = 1
	res := p.Decode(testhelpers.BuildTrain(p.Definition(), bits))
	c.Assert(res.Matched, qt.IsFalse)
	c.Assert(res.Reason, qt.ErrorIs, pulse.ErrInvalidState)
}

func TestDooyaDecodeFrameErrors(t *testing.T) {
	c := qt.New(t)
	p := protocols.NewDooya()
	train, _, err := p.Encode(protocols.Request{ID: protocols.Int(1), Channel: protocols.Int(1), Up: true})
	c.Assert(err, qt.IsNil)

	badHeader := train.Clone()
	badHeader[0] = 1000

	tests := []struct {
		name  string
		train pulse.Train
		want  error
	}{
		{"short", train[:82], pulse.ErrLengthMismatch},
		{"header", badHeader, pulse.ErrHeaderMismatch},
		{"footer", append(train[:82:82], 3000), pulse.ErrFooterMismatch},
	}
	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			res := p.Decode(tt.train)
			c.Assert(res.Matched, qt.IsFalse)
			c.Assert(res.Reason, qt.ErrorIs, tt.want)
			c.Assert(p.Validate(tt.train), qt.ErrorIs, tt.want)
		})
	}
}

func TestDooyaEncodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		req   protocols.Request
		field string
		want  error
	}{
		{"missing id", protocols.Request{Channel: protocols.Int(1), Up: true}, "id", pulse.ErrMissingField},
		{"id too large", protocols.Request{ID: protocols.Int(4096), Channel: protocols.Int(1), Up: true}, "id", pulse.ErrOutOfRange},
		{"negative id", protocols.Request{ID: protocols.Int(-1), Channel: protocols.Int(1), Up: true}, "id", pulse.ErrOutOfRange},
		{"missing channel", protocols.Request{ID: protocols.Int(1), Up: true}, "channel", pulse.ErrMissingField},
		{"channel too large", protocols.Request{ID: protocols.Int(1), Channel: protocols.Int(256), Up: true}, "channel", pulse.ErrOutOfRange},
		{"no state", protocols.Request{ID: protocols.Int(1), Channel: protocols.Int(1)}, "state", pulse.ErrMissingField},
		{"up and down", protocols.Request{ID: protocols.Int(1), Channel: protocols.Int(1), Up: true, Down: true}, "state", pulse.ErrConflictingFields},
	}

	c := qt.New(t)
	p := protocols.NewDooya()
	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			train, _, err := p.Encode(tt.req)
			c.Assert(train, qt.IsNil)
			c.Assert(err, qt.ErrorIs, tt.want)

			var reqErr *pulse.RequestError
			c.Assert(errors.As(err, &reqErr), qt.IsTrue)
			c.Assert(reqErr.Field, qt.Equals, tt.field)
		})
	}
}
