package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// MIDIConfig selects where the voice is played and where clock comes from
type MIDIConfig struct {
	OutputPort   string `json:"outputPort,omitempty"`
	Channel      int    `json:"channel"`             // 0-15
	BaseNote     int    `json:"baseNote"`            // note sounding at 0 V
	AccentCC     int    `json:"accentCC,omitempty"`  // 0 disables accent CC
	BendRange    int    `json:"bendRange,omitempty"` // semitones at full pitch bend
	ClockPort    string `json:"clockPort,omitempty"`
	ClockDivider int    `json:"clockDivider,omitempty"` // MIDI clocks per step
}

// AudioConfig sets the engine frame rate and scheduling block
type AudioConfig struct {
	SampleRate float64  `json:"sampleRate"`
	Block      Duration `json:"block"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	Palette     string `json:"palette,omitempty"` // path to a GIMP .gpl palette
	LastProject string `json:"lastProject,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Audio AudioConfig `json:"audio"`
	MIDI  MIDIConfig  `json:"midi"`
	UI    UIConfig    `json:"ui,omitempty"`
	Debug bool        `json:"debug,omitempty"`
}

// Duration is a time.Duration written as a string such as "2ms"
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// bare numbers are nanoseconds
		var n int64
		if err2 := json.Unmarshal(data, &n); err2 != nil {
			return err
		}
		*d = Duration(n)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: 48000,
			Block:      Duration(2 * time.Millisecond),
		},
		MIDI: MIDIConfig{
			Channel:      0,
			BaseNote:     36,
			AccentCC:     0,
			BendRange:    2,
			ClockDivider: 6,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-bordl"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a config file. Keys missing from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// normalize pulls out-of-range values back to something playable
func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = def.Audio.SampleRate
	}
	if c.Audio.Block <= 0 {
		c.Audio.Block = def.Audio.Block
	}
	if c.MIDI.Channel < 0 || c.MIDI.Channel > 15 {
		c.MIDI.Channel = 0
	}
	if c.MIDI.BaseNote < 0 || c.MIDI.BaseNote > 127 {
		c.MIDI.BaseNote = def.MIDI.BaseNote
	}
	if c.MIDI.AccentCC < 0 || c.MIDI.AccentCC > 127 {
		c.MIDI.AccentCC = 0
	}
	if c.MIDI.BendRange <= 0 {
		c.MIDI.BendRange = def.MIDI.BendRange
	}
	if c.MIDI.ClockDivider <= 0 {
		c.MIDI.ClockDivider = def.MIDI.ClockDivider
	}
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory
func (c *Config) SaveFile(path string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
