package sequencer

import (
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"testing"
)

// busyEngine edits several patterns so every stored field carries data.
func busyEngine(t *testing.T) *Engine {
	t.Helper()
	e, _ := newTestEngine()
	in := &Inputs{}
	e.Tick(in)

	rng := rand.New(rand.NewSource(5))
	for pat := 0; pat < NumPatterns; pat += 3 {
		e.Apply(SelectPattern(pat))
		for lane := 0; lane < NumLanes; lane++ {
			e.Apply(SetLane(lane, AttrPitch, rng.Float64()*10))
			e.Apply(SetLane(lane, AttrPulses, float64(1+rng.Intn(8))))
			e.Apply(SetLane(lane, AttrGateType, float64(rng.Intn(NumGateTypes))))
			e.Apply(SetLane(lane, AttrGateProbability, rng.Float64()))
			e.Apply(SetLane(lane, AttrPitchRandom, rng.Float64()))
			e.Apply(SetLane(lane, AttrAccent, rng.Float64()*10))
			e.Apply(SetLane(lane, AttrAccentRandom, rng.Float64()))
			e.Apply(SetLane(lane, AttrSlide, float64(rng.Intn(2))))
			e.Apply(SetLane(lane, AttrSkip, float64(rng.Intn(2))))
		}
		e.Apply(SetKnob(KnobSteps, float64(1+rng.Intn(16))))
		e.Apply(SetKnob(KnobRoot, float64(rng.Intn(12))))
		e.Apply(SetKnob(KnobScale, float64(rng.Intn(NumScales))))
		e.Apply(SetKnob(KnobGateTime, 0.1+rng.Float64()*0.9))
		e.Apply(SetKnob(KnobSlideTime, 0.1+rng.Float64()*0.9))
		e.Apply(SetKnob(KnobSensitivity, 0.1+rng.Float64()*0.9))
		e.Apply(SetPlayMode(PlayMode(rng.Intn(NumPlayModes))))
		e.Apply(SetCountMode(CountMode(pat % 2)))
		e.Tick(in)
	}
	e.Apply(SelectPattern(6))
	e.Apply(SetKnob(KnobTempo, 3.25))
	e.Apply(Simple(OpTogglePitchMode))
	e.Tick(in)
	e.Publish()
	return e
}

func assertSamePatterns(t *testing.T, got, want *Engine) {
	t.Helper()
	for i := range want.patterns {
		g, w := &got.patterns[i], &want.patterns[i]
		if g.PatternSettings != w.PatternSettings {
			t.Errorf("pattern %d settings %+v, want %+v", i, g.PatternSettings, w.PatternSettings)
		}
		if g.Steps != w.Steps {
			for j := range w.Steps {
				if g.Steps[j] != w.Steps[j] {
					t.Errorf("pattern %d step %d = %+v, want %+v", i, j, g.Steps[j], w.Steps[j])
				}
			}
		}
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	codecs := []struct {
		name   string
		encode func(*Document) ([]byte, error)
		decode func([]byte) (*Document, error)
	}{
		{"json", EncodeJSON, DecodeJSON},
		{"yaml", EncodeYAML, DecodeYAML},
	}
	src := busyEngine(t)
	var snap Snapshot
	src.Snapshot(&snap)

	for _, c := range codecs {
		data, err := c.encode(snap.Document())
		if err != nil {
			t.Fatalf("%s encode: %v", c.name, err)
		}
		doc, err := c.decode(data)
		if err != nil {
			t.Fatalf("%s decode: %v", c.name, err)
		}

		dst, _ := newTestEngine()
		dst.ApplyDocument(doc)
		assertSamePatterns(t, dst, src)

		if dst.selected != 6 || dst.panel.Pattern != 7 || !dst.pitchMode || dst.panel.Tempo != 3.25 {
			t.Errorf("%s: globals selected %d knob %d pitchMode %v tempo %v", c.name, dst.selected, dst.panel.Pattern, dst.pitchMode, dst.panel.Tempo)
		}
		if dst.panel.Lanes != src.panel.Lanes {
			t.Errorf("%s: panel lanes differ", c.name)
		}

		// the next tick rewrites the selected pattern from the restored panel
		dst.Tick(&Inputs{})
		src.Tick(&Inputs{})
		assertSamePatterns(t, dst, src)
	}
}

func TestDocumentKeys(t *testing.T) {
	e, _ := newTestEngine()
	e.Tick(&Inputs{})
	e.Publish()
	var snap Snapshot
	e.Snapshot(&snap)
	data, err := EncodeJSON(snap.Document())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{
		`"running"`, `"playMode"`, `"countMode"`, `"pitchMode"`, `"pitchQuantizeMode"`,
		`"selectedPattern"`, `"playedPattern"`, `"trigs"`, `"pattern0"`, `"pattern15"`,
		`"numSteps"`, `"rootNote"`, `"step0"`, `"step15"`, `"pulsesParam"`, `"gateProb"`,
		`"pitchRnd"`, `"rndAccent"`, `"skipParam"`, `"number"`,
	} {
		if !strings.Contains(string(data), key) {
			t.Errorf("encoded document lacks %s", key)
		}
	}
	if !strings.Contains(string(data), `"skip": 0`) {
		t.Error("flags should be written as integers")
	}
}

func TestDocumentPartialLoad(t *testing.T) {
	doc, err := DecodeJSON([]byte(`{
		"running": false,
		"trigs": [[true, false], [false, true]],
		"pattern3": {"rootNote": 5, "step2": {"pitch": 7.25, "skip": true}}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	e, _ := newTestEngine()
	before := e.patterns
	e.ApplyDocument(doc)

	if e.running {
		t.Error("running not loaded")
	}
	if !e.fullQuantize || e.pitchMode || e.selected != 0 {
		t.Error("absent globals changed")
	}
	if !e.panel.Lanes[0].Slide || !e.panel.Lanes[1].Skip || e.panel.Lanes[2].Slide {
		t.Errorf("trigs not applied: %+v", e.panel.Lanes[:3])
	}
	p := e.patterns[3]
	if p.RootNote != 5 || p.Steps[2].Pitch != 7.25 || !p.Steps[2].Skip {
		t.Errorf("pattern 3 = %+v", p.Steps[2])
	}
	want := before[3]
	want.RootNote = 5
	want.Steps[2].Pitch = 7.25
	want.Steps[2].Skip = true
	if !reflect.DeepEqual(p, want) {
		t.Error("pattern 3 fields outside the document changed")
	}
	for i := range before {
		if i != 3 && !reflect.DeepEqual(e.patterns[i], before[i]) {
			t.Errorf("pattern %d changed", i)
		}
	}
}

func TestDocumentClampsOnLoad(t *testing.T) {
	doc, err := DecodeJSON([]byte(`{
		"playMode": 12, "countMode": -1, "selectedPattern": 99, "playedPattern": -4,
		"pattern0": {"playMode": 7, "numSteps": 40, "rootNote": 30, "scale": 55,
			"gateTime": 3, "sensitivity": -1,
			"step1": {"index": 20, "number": -2, "pulses": 99, "pulsesParam": 0,
				"pitch": 50, "type": 9, "gateProb": 2, "accent": -3}}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	e, _ := newTestEngine()
	e.ApplyDocument(doc)

	if e.playMode != PlayBrownian || e.countMode != CountSteps || e.selected != 15 || e.active != 0 {
		t.Errorf("globals %v %v %d %d", e.playMode, e.countMode, e.selected, e.active)
	}
	p := e.patterns[0]
	if p.PlayMode != PlayBrownian || p.NumberOfStepsRequested != 16 || p.NumberOfSteps != 16 ||
		p.RootNote != 11 || p.Scale != ScaleNone || p.GateTime != 1 || p.Sensitivity != 0 {
		t.Errorf("pattern settings %+v", p.PatternSettings)
	}
	s := p.Steps[1]
	if s.Lane != 7 || s.Ordinal != 0 || s.PulseCount != 8 || s.PulseCountRequested != 1 ||
		s.Pitch != PitchMax || s.GateType != GateExternal2 || s.GateProbability != 1 || s.Accent != 0 {
		t.Errorf("step %+v", s)
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	if _, err := DecodeJSON([]byte(`{"pattern0": {"step0": {"skip": "yes"}}}`)); err == nil {
		t.Error("expected error for a non-numeric flag")
	}
	if _, err := DecodeJSON([]byte(`[1,2]`)); err == nil {
		t.Error("expected error for a non-object document")
	}
	if _, err := Decode("song.txt", []byte(`{}`)); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("err = %v, want ErrUnknownFormat", err)
	}
	if _, err := Encode("song.wav", &Document{}); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("err = %v, want ErrUnknownFormat", err)
	}
	doc, err := Decode("empty.yaml", nil)
	if err != nil || doc == nil {
		t.Errorf("empty yaml: %v %v", doc, err)
	}
}

func TestLoadCommandAppliesBetweenTicks(t *testing.T) {
	e, _ := newTestEngine()
	in := &Inputs{}
	e.Tick(in)

	doc := &Document{SelectedPattern: ptr(4), PitchQuantizeMode: ptr(false)}
	doc.Patterns[4] = &PatternDoc{Scale: ptr(int(ScaleBlues)), NumSteps: ptr(12)}
	if err := e.Send(Load(doc)); err != nil {
		t.Fatal(err)
	}
	if e.selected != 0 {
		t.Fatal("load applied before the next tick")
	}
	e.Tick(in)

	if e.selected != 4 || e.fullQuantize {
		t.Errorf("selected %d fullQuantize %v", e.selected, e.fullQuantize)
	}
	if e.panel.Scale != ScaleBlues || e.panel.Steps != 12 {
		t.Errorf("panel scale %v steps %d", e.panel.Scale, e.panel.Steps)
	}
	if p := e.patterns[4]; p.Scale != ScaleBlues || p.NumberOfSteps != 12 {
		t.Errorf("pattern 4 scale %v steps %d", p.Scale, p.NumberOfSteps)
	}
}
