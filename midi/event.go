package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// MIDI message types
const (
	NoteOn    uint8 = 0x90
	NoteOff   uint8 = 0x80
	CC        uint8 = 0xB0
	PitchBend uint8 = 0xE0
)

// Event is one outgoing voice message. For CC, Note is the controller number
// and Velocity the value.
type Event struct {
	Type     uint8 // NoteOn, NoteOff, CC, PitchBend
	Channel  uint8
	Note     uint8
	Velocity uint8
	Bend     int16 // -8192..8191, PitchBend only
}

// Message converts the event to its wire form.
func (e Event) Message() gomidi.Message {
	switch e.Type {
	case NoteOn:
		return gomidi.NoteOn(e.Channel, e.Note, e.Velocity)
	case NoteOff:
		return gomidi.NoteOff(e.Channel, e.Note)
	case CC:
		return gomidi.ControlChange(e.Channel, e.Note, e.Velocity)
	case PitchBend:
		return gomidi.Pitchbend(e.Channel, e.Bend)
	}
	return nil
}

func (e Event) String() string {
	switch e.Type {
	case NoteOn:
		return fmt.Sprintf("on  ch%d %3d vel %d", e.Channel+1, e.Note, e.Velocity)
	case NoteOff:
		return fmt.Sprintf("off ch%d %3d", e.Channel+1, e.Note)
	case CC:
		return fmt.Sprintf("cc  ch%d %3d = %d", e.Channel+1, e.Note, e.Velocity)
	case PitchBend:
		return fmt.Sprintf("pb  ch%d %+d", e.Channel+1, e.Bend)
	}
	return fmt.Sprintf("?%02x", e.Type)
}
