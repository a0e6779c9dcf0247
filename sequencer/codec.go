package sequencer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for file names that are neither JSON nor YAML.
var ErrUnknownFormat = errors.New("sequencer: unknown document format")

// Document is the persisted form of the engine. Every field is optional: a
// missing key leaves the corresponding engine value untouched on load.
type Document struct {
	Running           *bool    `json:"running,omitempty"`
	PlayMode          *int     `json:"playMode,omitempty"`
	CountMode         *int     `json:"countMode,omitempty"`
	PitchMode         *bool    `json:"pitchMode,omitempty"`
	PitchQuantizeMode *bool    `json:"pitchQuantizeMode,omitempty"`
	SelectedPattern   *int     `json:"selectedPattern,omitempty"`
	PlayedPattern     *int     `json:"playedPattern,omitempty"`
	Tempo             *float64 `json:"tempo,omitempty"`
	Trigs             [][]bool `json:"trigs,omitempty"` // per lane: [slide, skip]

	Patterns [NumPatterns]*PatternDoc `json:"-"` // pattern0..pattern15
}

// PatternDoc is one stored pattern.
type PatternDoc struct {
	PlayMode    *int     `json:"playMode,omitempty"`
	CountMode   *int     `json:"countMode,omitempty"`
	NumSteps    *int     `json:"numSteps,omitempty"` // requested
	ActiveSteps *int     `json:"activeSteps,omitempty"`
	RootNote    *int     `json:"rootNote,omitempty"`
	Scale       *int     `json:"scale,omitempty"`
	GateTime    *float64 `json:"gateTime,omitempty"`
	SlideTime   *float64 `json:"slideTime,omitempty"`
	Sensitivity *float64 `json:"sensitivity,omitempty"`

	Steps [NumSteps]*StepDoc `json:"-"` // step0..step15
}

// StepDoc is one stored step. Flags are written as 0/1.
type StepDoc struct {
	Index       *int     `json:"index,omitempty"`
	Number      *int     `json:"number,omitempty"`
	Skip        *flag    `json:"skip,omitempty"`
	SkipParam   *flag    `json:"skipParam,omitempty"`
	Slide       *flag    `json:"slide,omitempty"`
	Pulses      *int     `json:"pulses,omitempty"`
	PulsesParam *int     `json:"pulsesParam,omitempty"`
	Pitch       *float64 `json:"pitch,omitempty"`
	Type        *int     `json:"type,omitempty"`
	GateProb    *float64 `json:"gateProb,omitempty"`
	PitchRnd    *float64 `json:"pitchRnd,omitempty"`
	Accent      *float64 `json:"accent,omitempty"`
	RndAccent   *float64 `json:"rndAccent,omitempty"`
}

// flag is a bool stored as an integer. Booleans are accepted on decode.
type flag bool

func (f flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

func (f *flag) UnmarshalJSON(data []byte) error {
	switch s := string(bytes.TrimSpace(data)); s {
	case "true":
		*f = true
	case "false", "null":
		*f = false
	default:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("flag %s: %w", s, err)
		}
		*f = v != 0
	}
	return nil
}

type documentFields Document
type patternFields PatternDoc

func (d Document) MarshalJSON() ([]byte, error) {
	return marshalKeyed(documentFields(d), "pattern", d.Patterns[:])
}

func (d *Document) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*documentFields)(d)); err != nil {
		return err
	}
	return unmarshalKeyed(data, "pattern", d.Patterns[:])
}

func (p PatternDoc) MarshalJSON() ([]byte, error) {
	return marshalKeyed(patternFields(p), "step", p.Steps[:])
}

func (p *PatternDoc) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*patternFields)(p)); err != nil {
		return err
	}
	return unmarshalKeyed(data, "step", p.Steps[:])
}

// marshalKeyed encodes fields and adds items under prefix0, prefix1, ...
func marshalKeyed[T any](fields any, prefix string, items []*T) ([]byte, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	tree := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &tree); err != nil {
		return nil, err
	}
	for i, item := range items {
		if item == nil {
			continue
		}
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("%s%d: %w", prefix, i, err)
		}
		tree[prefix+strconv.Itoa(i)] = raw
	}
	return json.Marshal(tree)
}

// unmarshalKeyed decodes prefix0, prefix1, ... into items, leaving absent keys nil.
func unmarshalKeyed[T any](data []byte, prefix string, items []*T) error {
	var tree map[string]json.RawMessage
	if err := json.Unmarshal(data, &tree); err != nil {
		return err
	}
	for i := range items {
		raw, ok := tree[prefix+strconv.Itoa(i)]
		if !ok {
			continue
		}
		item := new(T)
		if err := json.Unmarshal(raw, item); err != nil {
			return fmt.Errorf("%s%d: %w", prefix, i, err)
		}
		items[i] = item
	}
	return nil
}

// Document builds the persisted form of the snapshot.
func (s *Snapshot) Document() *Document {
	d := &Document{
		Running:           ptr(s.Running),
		PlayMode:          ptr(int(s.PlayMode)),
		CountMode:         ptr(int(s.CountMode)),
		PitchMode:         ptr(s.PitchMode),
		PitchQuantizeMode: ptr(s.FullQuantize),
		SelectedPattern:   ptr(s.Selected),
		PlayedPattern:     ptr(s.Active),
		Tempo:             ptr(s.Panel.Tempo),
		Trigs:             make([][]bool, NumLanes),
	}
	for i, lane := range s.Panel.Lanes {
		d.Trigs[i] = []bool{lane.Slide, lane.Skip}
	}
	for i := range s.Patterns {
		d.Patterns[i] = patternDoc(&s.Patterns[i])
	}
	return d
}

func patternDoc(p *Pattern) *PatternDoc {
	pd := &PatternDoc{
		PlayMode:    ptr(int(p.PlayMode)),
		CountMode:   ptr(int(p.CountMode)),
		NumSteps:    ptr(p.NumberOfStepsRequested),
		ActiveSteps: ptr(p.NumberOfSteps),
		RootNote:    ptr(p.RootNote),
		Scale:       ptr(int(p.Scale)),
		GateTime:    ptr(p.GateTime),
		SlideTime:   ptr(p.SlideTime),
		Sensitivity: ptr(p.Sensitivity),
	}
	for j := range p.Steps {
		s := &p.Steps[j]
		pd.Steps[j] = &StepDoc{
			Index:       ptr(s.Lane),
			Number:      ptr(s.Ordinal),
			Skip:        ptr(flag(s.Skip)),
			SkipParam:   ptr(flag(s.SkipRequested)),
			Slide:       ptr(flag(s.Slide)),
			Pulses:      ptr(s.PulseCount),
			PulsesParam: ptr(s.PulseCountRequested),
			Pitch:       ptr(s.Pitch),
			Type:        ptr(int(s.GateType)),
			GateProb:    ptr(s.GateProbability),
			PitchRnd:    ptr(s.PitchRandomDepth),
			Accent:      ptr(s.Accent),
			RndAccent:   ptr(s.AccentRandomDepth),
		}
	}
	return pd
}

// ApplyDocument loads doc into the engine. Missing keys keep their current
// values and out-of-range numbers are clamped. The selected pattern is copied
// onto the panel and the stored lane flags are applied on top. Audio
// goroutine only; from elsewhere send Load(doc).
func (e *Engine) ApplyDocument(doc *Document) {
	setBool(&e.running, doc.Running)
	if doc.PlayMode != nil {
		e.playMode = PlayMode(*doc.PlayMode).Clamp()
	}
	if doc.CountMode != nil {
		e.countMode = CountMode(*doc.CountMode).Clamp()
	}
	setBool(&e.pitchMode, doc.PitchMode)
	setBool(&e.fullQuantize, doc.PitchQuantizeMode)
	setInt(&e.selected, doc.SelectedPattern, 0, NumPatterns-1)
	setInt(&e.active, doc.PlayedPattern, 0, NumPatterns-1)
	if doc.Tempo != nil {
		e.panel.SetKnob(KnobTempo, *doc.Tempo)
	}

	for i, pd := range doc.Patterns {
		if pd != nil {
			pd.apply(&e.patterns[i])
		}
	}

	e.panel.Pattern = e.selected + 1
	e.panel.loadPattern(&e.patterns[e.selected])
	for i, trig := range doc.Trigs {
		if i >= NumLanes {
			break
		}
		if len(trig) > 0 {
			e.panel.Lanes[i].Slide = trig[0]
		}
		if len(trig) > 1 {
			e.panel.Lanes[i].Skip = trig[1]
		}
	}
	e.updateEnabled = true
	e.initialized = true
}

func (pd *PatternDoc) apply(p *Pattern) {
	if pd.PlayMode != nil {
		p.PlayMode = PlayMode(*pd.PlayMode).Clamp()
	}
	if pd.CountMode != nil {
		p.CountMode = CountMode(*pd.CountMode).Clamp()
	}
	setInt(&p.NumberOfStepsRequested, pd.NumSteps, 1, NumSteps)
	if pd.ActiveSteps != nil {
		setInt(&p.NumberOfSteps, pd.ActiveSteps, 1, NumSteps)
	} else if pd.NumSteps != nil {
		p.NumberOfSteps = p.NumberOfStepsRequested
	}
	setInt(&p.RootNote, pd.RootNote, 0, NumNotes-1)
	if pd.Scale != nil {
		p.Scale = Scale(*pd.Scale).Clamp()
	}
	setFloat(&p.GateTime, pd.GateTime, 0, 1)
	setFloat(&p.SlideTime, pd.SlideTime, 0, 1)
	setFloat(&p.Sensitivity, pd.Sensitivity, 0, 1)

	for j, sd := range pd.Steps {
		if sd != nil {
			sd.apply(&p.Steps[j])
		}
	}
}

func (sd *StepDoc) apply(s *Step) {
	setInt(&s.Lane, sd.Index, 0, NumLanes-1)
	setInt(&s.Ordinal, sd.Number, 0, NumSteps-1)
	setFlag(&s.Skip, sd.Skip)
	setFlag(&s.SkipRequested, sd.SkipParam)
	setFlag(&s.Slide, sd.Slide)
	setInt(&s.PulseCount, sd.Pulses, 0, PulsesMax)
	setInt(&s.PulseCountRequested, sd.PulsesParam, 1, PulsesMax)
	setFloat(&s.Pitch, sd.Pitch, 0, PitchMax)
	if sd.Type != nil {
		s.GateType = GateType(*sd.Type).Clamp()
	}
	setFloat(&s.GateProbability, sd.GateProb, 0, 1)
	setFloat(&s.PitchRandomDepth, sd.PitchRnd, 0, 1)
	setFloat(&s.Accent, sd.Accent, 0, AccentMax)
	setFloat(&s.AccentRandomDepth, sd.RndAccent, 0, 1)
}

func ptr[T any](v T) *T { return &v }

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setFlag(dst *bool, v *flag) {
	if v != nil {
		*dst = bool(*v)
	}
}

func setInt(dst *int, v *int, lo, hi int) {
	if v != nil {
		*dst = clampInt(*v, lo, hi)
	}
}

func setFloat(dst *float64, v *float64, lo, hi float64) {
	if v != nil {
		*dst = clamp(*v, lo, hi)
	}
}

// EncodeJSON renders doc as indented JSON.
func EncodeJSON(doc *Document) ([]byte, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, b, "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// DecodeJSON parses a JSON document.
func DecodeJSON(data []byte) (*Document, error) {
	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return doc, nil
}

// EncodeYAML renders doc as YAML with the same keys as the JSON form.
func EncodeYAML(doc *Document) ([]byte, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(b, &tree); err != nil {
		return nil, err
	}
	return yaml.Marshal(tree)
}

// DecodeYAML parses a YAML document.
func DecodeYAML(data []byte) (*Document, error) {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if tree == nil {
		return &Document{}, nil
	}
	b, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return DecodeJSON(b)
}

// Encode picks the encoding from the file extension.
func Encode(name string, doc *Document) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return EncodeJSON(doc)
	case ".yaml", ".yml":
		return EncodeYAML(doc)
	}
	return nil, fmt.Errorf("%s: %w", name, ErrUnknownFormat)
}

// Decode picks the decoding from the file extension.
func Decode(name string, data []byte) (*Document, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return DecodeJSON(data)
	case ".yaml", ".yml":
		return DecodeYAML(data)
	}
	return nil, fmt.Errorf("%s: %w", name, ErrUnknownFormat)
}
