package pulse

import (
	"errors"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestFieldLayoutRoundTrip(t *testing.T) {
	c := qt.New(t)
	def := MustDefinition(layoutDefinition())

	for _, state := range []string{"on", "off"} {
		for id := uint64(0); id < 256; id += 17 {
			f := NewFields()
			f.Values["id"] = id
			f.States["state"] = state

			train, err := def.Encode(f)
			c.Assert(err, qt.IsNil)

			got, err := def.Decode(train)
			c.Assert(err, qt.IsNil)
			c.Assert(got.Values["id"], qt.Equals, id)
			c.Assert(got.Values["sync"], qt.Equals, uint64(5))
			c.Assert(got.State("state"), qt.Equals, state)
		}
	}
}

func TestFieldLayoutSyncWrittenFromDefinition(t *testing.T) {
	c := qt.New(t)
	def := MustDefinition(layoutDefinition())

	f := NewFields()
	f.Values["id"] = 1
	f.Values["sync"] = 2 // ignored
	f.States["state"] = "off"
	train, err := def.Encode(f)
	c.Assert(err, qt.IsNil)

	got, err := def.Decode(train)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Values["sync"], qt.Equals, uint64(5))
}

func TestFieldLayoutSyncMismatch(t *testing.T) {
	c := qt.New(t)
	def, train := encodedLayoutTrain(c)

	// Sync field 8..11 holds 0101; raising bit 8 makes it 1101.
	bad := train.Clone()
	copy(bad[def.bitOffset(8):], def.High)
	c.Assert(def.Validate(bad), qt.IsNil)

	_, err := def.Decode(bad)
	var fieldErr *FieldError
	c.Assert(errors.As(err, &fieldErr), qt.IsTrue)
	c.Assert(fieldErr.Field, qt.Equals, "sync")
	c.Assert(err, qt.ErrorIs, ErrSyncMismatch)
}

func TestFieldLayoutInvalidState(t *testing.T) {
	c := qt.New(t)
	def, train := encodedLayoutTrain(c)

	// State 9 = 1001 at bits 12..15; clearing bit 15 gives 8.
	bad := train.Clone()
	copy(bad[def.bitOffset(15):], def.Low)

	_, err := def.Decode(bad)
	c.Assert(err, qt.ErrorIs, ErrInvalidState)
	c.Assert(Reason(err), qt.Equals, "invalid_state")
}

func TestFieldLayoutEncodeErrors(t *testing.T) {
	def := MustDefinition(layoutDefinition())

	tests := []struct {
		name  string
		build func(f Fields)
		field string
		err   error
	}{
		{"missing id", func(f Fields) { f.States["state"] = "on" }, "id", ErrMissingField},
		{"missing state", func(f Fields) { f.Values["id"] = 1 }, "state", ErrMissingField},
		{"unknown state", func(f Fields) { f.Values["id"] = 1; f.States["state"] = "up" }, "state", ErrOutOfRange},
		{"id too wide", func(f Fields) { f.Values["id"] = 256; f.States["state"] = "on" }, "id", ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFields()
			tt.build(f)
			_, err := def.Encode(f)
			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("expected RequestError, got %v", err)
			}
			if reqErr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, reqErr.Field)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("expected %v, got %v", tt.err, err)
			}
		})
	}
}

func TestAmbiguousBitPolicy(t *testing.T) {
	c := qt.New(t)
	d := layoutDefinition()
	lenient := MustDefinition(d)
	d.StrictBits = true
	strict := MustDefinition(d)

	_, train := encodedLayoutTrain(c)
	// id 42 = 00101010; bit 0 is low. Replace it with garbage.
	bad := train.Clone()
	bad[2], bad[3] = 1000, 1000

	fr := Demodulate(lenient, bad)
	c.Assert(fr.Unknown, qt.DeepEquals, []int{0})
	c.Assert(fr.Bits[0], qt.Equals, uint8(0))

	got, err := lenient.Decode(bad)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Values["id"], qt.Equals, uint64(42))

	_, err = strict.Decode(bad)
	c.Assert(err, qt.ErrorIs, ErrAmbiguousBit)
}

func TestFlagWaveform(t *testing.T) {
	c := qt.New(t)
	d := layoutDefinition()
	marker := Waveform{320, 400}
	d.StrictBits = true
	d.Strategy = &FieldLayout{
		Fields: []Field{{Name: "id", Start: 0, End: 14}},
		Flags:  []Flag{{Name: "mark", Bit: 15, Waveform: marker}},
	}
	def := MustDefinition(d)

	f := NewFields()
	f.Values["id"] = 1234
	f.Flags["mark"] = true
	train, err := def.Encode(f)
	c.Assert(err, qt.IsNil)
	c.Assert(Waveform(train[def.bitOffset(15):def.bitOffset(16)]), qt.DeepEquals, marker)

	got, err := def.Decode(train)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Flag("mark"), qt.IsTrue)
	c.Assert(got.Values["id"], qt.Equals, uint64(1234))

	f.Flags["mark"] = false
	train, err = def.Encode(f)
	c.Assert(err, qt.IsNil)
	got, err = def.Decode(train)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Flag("mark"), qt.IsFalse)
}

func TestConcurrentEncodeDecode(t *testing.T) {
	def := MustDefinition(layoutDefinition())

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for id := uint64(g); id < 256; id += 8 {
				f := NewFields()
				f.Values["id"] = id
				f.States["state"] = "off"
				train, err := def.Encode(f)
				if err != nil {
					errs <- err
					return
				}
				got, err := def.Decode(train)
				if err != nil {
					errs <- err
					return
				}
				if got.Values["id"] != id {
					errs <- errors.New("decoded id differs from encoded id")
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
