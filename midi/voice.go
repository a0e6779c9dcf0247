package midi

import (
	"math"

	"go-bordl/sequencer"
)

// gateThreshold is the gate voltage treated as high.
const gateThreshold = 1.0

// Voice turns the engine's gate, pitch and accent voltages into note events.
// Pitch is 1 V/octave above BaseNote; slides within BendRange semitones of
// the sounding note become pitch bend.
type Voice struct {
	Channel   uint8
	BaseNote  int
	AccentCC  int // 0 disables
	BendRange int // semitones, 0 disables bend

	gate   bool
	note   uint8
	bend   int16
	accent int // last CC value sent, -1 for none
}

// NewVoice returns a voice with nothing sounding.
func NewVoice(channel uint8, baseNote, accentCC, bendRange int) *Voice {
	return &Voice{
		Channel:   channel,
		BaseNote:  baseNote,
		AccentCC:  accentCC,
		BendRange: bendRange,
		accent:    -1,
	}
}

// Process appends the events produced by one frame of outputs to dst.
func (v *Voice) Process(out sequencer.Outputs, dst []Event) []Event {
	gate := out.Gate >= gateThreshold
	switch {
	case gate && !v.gate:
		dst = v.start(out, dst)
	case !gate && v.gate:
		dst = append(dst, Event{Type: NoteOff, Channel: v.Channel, Note: v.note})
		v.gate = false
	case gate:
		dst = v.glide(out.Pitch, dst)
	}
	return dst
}

// Off releases the sounding note, if any.
func (v *Voice) Off(dst []Event) []Event {
	if v.gate {
		dst = append(dst, Event{Type: NoteOff, Channel: v.Channel, Note: v.note})
		v.gate = false
	}
	return dst
}

// Sounding reports the held note.
func (v *Voice) Sounding() (note uint8, ok bool) {
	return v.note, v.gate
}

func (v *Voice) start(out sequencer.Outputs, dst []Event) []Event {
	if v.AccentCC > 0 {
		if val := scale7(out.Accent, 0); val != v.accent {
			dst = append(dst, Event{Type: CC, Channel: v.Channel, Note: uint8(v.AccentCC), Velocity: uint8(val)})
			v.accent = val
		}
	}
	if v.bend != 0 {
		dst = append(dst, Event{Type: PitchBend, Channel: v.Channel})
		v.bend = 0
	}
	v.note = v.noteFor(out.Pitch)
	v.gate = true
	return append(dst, Event{Type: NoteOn, Channel: v.Channel, Note: v.note, Velocity: uint8(scale7(out.Accent, 1))})
}

// glide bends the held note toward pitch.
func (v *Voice) glide(pitch float64, dst []Event) []Event {
	if v.BendRange <= 0 {
		return dst
	}
	offset := pitch*12 - float64(int(v.note)-v.BaseNote)
	r := float64(v.BendRange)
	offset = math.Max(-r, math.Min(r, offset))
	bend := int16(math.Round(offset / r * 8191))
	if bend == v.bend {
		return dst
	}
	v.bend = bend
	return append(dst, Event{Type: PitchBend, Channel: v.Channel, Bend: bend})
}

func (v *Voice) noteFor(pitch float64) uint8 {
	n := v.BaseNote + int(math.Round(pitch*12))
	return uint8(max(0, min(127, n)))
}

// scale7 maps an accent voltage (0..10) onto lo..127.
func scale7(accent float64, lo int) int {
	a := math.Max(0, math.Min(10, accent))
	return lo + int(math.Round(a/10*float64(127-lo)))
}
