package midi

import (
	"reflect"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-bordl/sequencer"
)

func TestVoiceGateEdges(t *testing.T) {
	v := NewVoice(2, 36, 0, 2)
	frames := []struct {
		out  sequencer.Outputs
		want []Event
	}{
		{sequencer.Outputs{Gate: 10, Pitch: 1, Accent: 5}, []Event{{Type: NoteOn, Channel: 2, Note: 48, Velocity: 64}}},
		{sequencer.Outputs{Gate: 10, Pitch: 1, Accent: 5}, nil},
		{sequencer.Outputs{Gate: 10, Pitch: 1.125, Accent: 5}, []Event{{Type: PitchBend, Channel: 2, Bend: 6143}}},
		{sequencer.Outputs{Gate: 10, Pitch: 1.5, Accent: 5}, []Event{{Type: PitchBend, Channel: 2, Bend: 8191}}},
		{sequencer.Outputs{Gate: 0, Pitch: 1.5}, []Event{{Type: NoteOff, Channel: 2, Note: 48}}},
		{sequencer.Outputs{Gate: 0.5, Pitch: 2}, nil},
		{sequencer.Outputs{Gate: 4, Pitch: 0, Accent: 0}, []Event{
			{Type: PitchBend, Channel: 2},
			{Type: NoteOn, Channel: 2, Note: 36, Velocity: 1},
		}},
	}
	for i, f := range frames {
		got := v.Process(f.out, nil)
		if !reflect.DeepEqual(got, f.want) {
			t.Errorf("frame %d: got %v, want %v", i, got, f.want)
		}
	}
	if note, ok := v.Sounding(); !ok || note != 36 {
		t.Errorf("sounding = %d %v", note, ok)
	}
	if got := v.Off(nil); !reflect.DeepEqual(got, []Event{{Type: NoteOff, Channel: 2, Note: 36}}) {
		t.Errorf("off = %v", got)
	}
	if got := v.Off(nil); got != nil {
		t.Errorf("second off = %v", got)
	}
}

func TestVoiceAccentCC(t *testing.T) {
	v := NewVoice(0, 36, 74, 0)
	got := v.Process(sequencer.Outputs{Gate: 10, Pitch: 0.5, Accent: 5}, nil)
	want := []Event{
		{Type: CC, Note: 74, Velocity: 64},
		{Type: NoteOn, Note: 42, Velocity: 64},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("first note = %v", got)
	}

	// bend disabled: pitch changes while gated are ignored
	if got := v.Process(sequencer.Outputs{Gate: 10, Pitch: 0.7, Accent: 5}, nil); got != nil {
		t.Errorf("glide without bend range = %v", got)
	}
	v.Process(sequencer.Outputs{}, nil)

	// same accent is not resent
	got = v.Process(sequencer.Outputs{Gate: 10, Pitch: 0.5, Accent: 5}, nil)
	if len(got) != 1 || got[0].Type != NoteOn {
		t.Errorf("second note = %v", got)
	}
}

func TestVoiceNoteRange(t *testing.T) {
	tests := []struct {
		base  int
		pitch float64
		want  uint8
	}{
		{36, 0, 36},
		{36, 10, 127},
		{0, -1, 0},
		{60, 0.04, 60},
		{60, 0.05, 61},
	}
	for _, tt := range tests {
		v := NewVoice(0, tt.base, 0, 0)
		v.Process(sequencer.Outputs{Gate: 10, Pitch: tt.pitch}, nil)
		if note, _ := v.Sounding(); note != tt.want {
			t.Errorf("base %d pitch %v: note %d, want %d", tt.base, tt.pitch, note, tt.want)
		}
	}
}

func TestOutputSendsMessages(t *testing.T) {
	var sent [][]byte
	out := NewOutput("test", func(msg gomidi.Message) error {
		sent = append(sent, msg)
		return nil
	})
	err := out.Send(
		Event{Type: NoteOn, Channel: 1, Note: 60, Velocity: 100},
		Event{Type: CC, Channel: 1, Note: 74, Velocity: 10},
		Event{Type: NoteOff, Channel: 1, Note: 60},
		Event{Type: 0x42},
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(sent) != 3 {
		t.Fatalf("sent %d messages, want 3", len(sent))
	}
	if sent[0][0] != 0x91 || sent[0][1] != 60 || sent[0][2] != 100 {
		t.Errorf("note on = % x", sent[0])
	}
	if sent[1][0] != 0xB1 || sent[1][1] != 74 {
		t.Errorf("cc = % x", sent[1])
	}
	if sent[2][0]&0xF0 != 0x80 && !(sent[2][0]&0xF0 == 0x90 && sent[2][2] == 0) {
		t.Errorf("note off = % x", sent[2])
	}
}
