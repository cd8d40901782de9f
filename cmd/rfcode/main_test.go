package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/dbehnke/rf-nexus/pkg/pulse"
)

func joinPulses(p []int) string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}

func TestRun_List(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"-list"}, nil, &out); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var list []protocolOutput
	if err := json.Unmarshal(out.Bytes(), &list); err != nil {
		t.Fatalf("Failed to parse output: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 protocols, got %d", len(list))
	}
	if list[0].Name != "arctech_dimmer" || list[0].Pulses != 148 {
		t.Errorf("Unexpected first protocol %+v", list[0])
	}

	out.Reset()
	if err := run([]string{"-list", "-format", "yaml"}, nil, &out); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if err := yaml.Unmarshal(out.Bytes(), &list); err != nil {
		t.Fatalf("Failed to parse yaml output: %v", err)
	}
	if len(list) != 3 || list[2].Name != "voltomat" {
		t.Errorf("Unexpected yaml list %+v", list)
	}
}

func TestRun_EncodeDecode(t *testing.T) {
	tests := []struct {
		name   string
		encode []string
		wantID string
	}{
		{"dooya", []string{"-protocol", "dooya_dc90", "-encode", "-id", "100", "-channel", "5", "-down"}, "100"},
		{"voltomat", []string{"-protocol", "voltomat", "-encode", "-button", "B", "-on"}, "B"},
		{"arctech dim", []string{"-protocol", "arctech_dimmer", "-encode", "-id", "4242", "-unit", "2", "-dimlevel", "11"}, "4242"},
		{"arctech all", []string{"-protocol", "arctech_dimmer", "-encode", "-id", "9", "-all", "-off"}, "9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := run(tt.encode, nil, &out); err != nil {
				t.Fatalf("encode failed: %v", err)
			}
			var enc encodeOutput
			if err := json.Unmarshal(out.Bytes(), &enc); err != nil {
				t.Fatalf("Failed to parse encode output: %v", err)
			}
			if enc.Message.ID != tt.wantID {
				t.Errorf("Expected id %s, got %s", tt.wantID, enc.Message.ID)
			}

			out.Reset()
			if err := run([]string{"-protocol", tt.encode[1], "-decode", joinPulses(enc.Pulses)}, nil, &out); err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			var dec decodeOutput
			if err := json.Unmarshal(out.Bytes(), &dec); err != nil {
				t.Fatalf("Failed to parse decode output: %v", err)
			}
			if !dec.Matched || dec.Message == nil || dec.Message.ID != tt.wantID || dec.Message.State != enc.Message.State {
				t.Errorf("Decode does not match encode: %+v vs %+v", dec, enc)
			}
		})
	}
}

func TestRun_DecodeFromStdin(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"-protocol", "voltomat", "-encode", "-id", "2", "-off", "-format", "yaml"}, nil, &out); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !strings.Contains(out.String(), "pulses: [") {
		t.Errorf("Expected pulses in flow style, got:\n%s", out.String())
	}
	var enc encodeOutput
	if err := yaml.Unmarshal(out.Bytes(), &enc); err != nil {
		t.Fatalf("Failed to parse yaml: %v", err)
	}

	// One pulse per line, as captured by a receiver
	var in strings.Builder
	for _, p := range enc.Pulses {
		in.WriteString(strconv.Itoa(p) + "\n")
	}
	out.Reset()
	if err := run([]string{"-protocol", "voltomat", "-decode", "-"}, strings.NewReader(in.String()), &out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !strings.Contains(out.String(), `"id": "C"`) {
		t.Errorf("Expected button C, got:\n%s", out.String())
	}
}

func TestRun_DecodeMiss(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"-protocol", "dooya_dc90", "-decode", "100,200,300"}, nil, &out)
	if !errors.Is(err, errNoMatch) {
		t.Fatalf("Expected errNoMatch, got %v", err)
	}
	var dec decodeOutput
	if err := json.Unmarshal(out.Bytes(), &dec); err != nil {
		t.Fatalf("Failed to parse output: %v", err)
	}
	if dec.Matched || dec.Reason != "length_mismatch" {
		t.Errorf("Unexpected miss output %+v", dec)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no protocol", []string{"-decode", "1 2"}, "-protocol is required"},
		{"unknown protocol", []string{"-protocol", "quigg", "-decode", "1 2"}, "unknown protocol"},
		{"no action", []string{"-protocol", "voltomat"}, "one of -decode"},
		{"both actions", []string{"-protocol", "voltomat", "-encode", "-decode", "1"}, "mutually exclusive"},
		{"bad format", []string{"-list", "-format", "xml"}, "unknown format"},
		{"bad pulse", []string{"-protocol", "voltomat", "-decode", "300 abc"}, "invalid duration"},
		{"missing state", []string{"-protocol", "dooya_dc90", "-encode", "-id", "1", "-channel", "1"}, "state"},
		{"unit out of range", []string{"-protocol", "arctech_dimmer", "-encode", "-id", "1", "-unit", "16", "-on"}, "unit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(tt.args, nil, &out)
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRun_EncodeRequestError(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"-protocol", "voltomat", "-encode", "-id", "7", "-on"}, nil, &out)
	var reqErr *pulse.RequestError
	if !errors.As(err, &reqErr) || reqErr.Field != "id" {
		t.Fatalf("Expected request error on id, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("Expected no output, got %s", out.String())
	}
}

func TestParseTrain(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{"300 900", []int{300, 900}, false},
		{"300,900, 300\n", []int{300, 900, 300}, false},
		{"  \t\n", nil, true},
		{"300 -1", nil, true},
		{"300 1.5", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTrain(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTrain(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseTrain(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("parseTrain(%q)[%d] = %d, want %d", tt.in, i, got[i], tt.want[i])
				}
			}
		})
	}
}
