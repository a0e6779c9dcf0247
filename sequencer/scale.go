package sequencer

// Scale indexes the scale table. ScaleNone disables quantization.
type Scale int

const (
	ScaleAeolian Scale = iota
	ScaleBlues
	ScaleChromatic
	ScaleDiatonicMinor
	ScaleDorian
	ScaleHarmonicMinor
	ScaleIndian
	ScaleLocrian
	ScaleLydian
	ScaleMajor
	ScaleMelodicMinor
	ScaleMinor
	ScaleMixolydian
	ScaleNaturalMinor
	ScalePentatonic
	ScalePhrygian
	ScaleTurkish
	ScaleNone

	NumScales = int(ScaleNone) + 1
)

// NumNotes is the number of pitch classes a root note can take.
const NumNotes = 12

// Scale definitions - pitch classes above the root (semitones)
var scales = [NumScales][]int{
	ScaleAeolian:       {0, 2, 3, 5, 7, 8, 10},
	ScaleBlues:         {0, 2, 3, 4, 5, 7, 9, 10, 11},
	ScaleChromatic:     {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	ScaleDiatonicMinor: {0, 2, 3, 5, 7, 8, 10},
	ScaleDorian:        {0, 2, 3, 5, 7, 9, 10},
	ScaleHarmonicMinor: {0, 2, 3, 5, 7, 8, 11},
	ScaleIndian:        {0, 1, 1, 4, 5, 8, 10},
	ScaleLocrian:       {0, 1, 3, 5, 6, 8, 10},
	ScaleLydian:        {0, 2, 4, 6, 7, 9, 10},
	ScaleMajor:         {0, 2, 4, 5, 7, 9, 11},
	ScaleMelodicMinor:  {0, 2, 3, 5, 7, 8, 9, 10, 11},
	ScaleMinor:         {0, 2, 3, 5, 7, 8, 10},
	ScaleMixolydian:    {0, 2, 4, 5, 7, 9, 10},
	ScaleNaturalMinor:  {0, 2, 3, 5, 7, 8, 10},
	ScalePentatonic:    {0, 2, 4, 7, 9},
	ScalePhrygian:      {0, 1, 3, 5, 7, 8, 10},
	ScaleTurkish:       {0, 1, 3, 5, 7, 10, 11},
	ScaleNone:          nil,
}

var scaleNames = [NumScales]string{
	"Aeolian", "Blues", "Chromatic", "Diatonic Minor",
	"Dorian", "Harmonic Minor", "Indian", "Locrian", "Lydian",
	"Major", "Melodic Minor", "Minor", "Mixolydian", "Natural Minor",
	"Pentatonic", "Phrygian", "Turkish", "None",
}

var noteNames = [NumNotes]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Clamp saturates s into the table.
func (s Scale) Clamp() Scale {
	return Scale(clampInt(int(s), 0, NumScales-1))
}

// Intervals returns the pitch classes of s. Nil for ScaleNone.
func (s Scale) Intervals() []int {
	return scales[s.Clamp()]
}

func (s Scale) String() string {
	return scaleNames[s.Clamp()]
}

// NoteName returns the display name of a root note, wrapping out-of-range values.
func NoteName(root int) string {
	return noteNames[((root%NumNotes)+NumNotes)%NumNotes]
}
