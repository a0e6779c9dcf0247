package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go-bordl/sequencer"
)

func TestRunUsage(t *testing.T) {
	tests := []struct {
		args []string
		code int
	}{
		{nil, 2},
		{[]string{"bogus"}, 2},
		{[]string{"dump"}, 1},
		{[]string{"render", "-nosuchflag"}, 1},
	}
	for _, tt := range tests {
		var stdout, stderr bytes.Buffer
		if got := run(tt.args, &stdout, &stderr); got != tt.code {
			t.Errorf("run(%v) = %d, want %d (stderr %q)", tt.args, got, tt.code, stderr.String())
		}
	}
}

func TestRenderDefaultPattern(t *testing.T) {
	var out bytes.Buffer
	if err := render(&out, nil, renderOptions{Seconds: 1, Rate: 1024}); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	if got := strings.Count(text, "on  ch1  72"); got != 4 {
		t.Errorf("%d note ons, want 4:\n%s", got, text)
	}
	if got := strings.Count(text, "off ch1  72"); got != 4 {
		t.Errorf("%d note offs, want 4:\n%s", got, text)
	}
	if !strings.HasPrefix(strings.TrimSpace(text), "0.0000s") {
		t.Errorf("first event should be at 0s:\n%s", text)
	}
}

func TestRenderCV(t *testing.T) {
	var out bytes.Buffer
	if err := render(&out, nil, renderOptions{Seconds: 0.5, Rate: 100, CVEvery: 10}); err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(out.String(), " cv gate"); got != 5 {
		t.Errorf("%d cv lines, want 5", got)
	}
}

func TestDumpAndRenderFile(t *testing.T) {
	doc, err := sequencer.DecodeJSON([]byte(`{"tempo": 3}`))
	if err != nil {
		t.Fatal(err)
	}
	var yml bytes.Buffer
	if err := dump(&yml, doc); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(yml.String(), "tempo: 3") {
		t.Fatalf("dump = %q", yml.String())
	}

	path := filepath.Join(t.TempDir(), "fast.yaml")
	if err := os.WriteFile(path, yml.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	var out, stderr bytes.Buffer
	if code := run([]string{"render", "-file", path, "-seconds", "1", "-rate", "1024"}, &out, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	// tempo 3 plays 8 steps a second
	if got := strings.Count(out.String(), "on  ch1"); got != 8 {
		t.Errorf("%d note ons, want 8", got)
	}
}

func TestWritePorts(t *testing.T) {
	var out bytes.Buffer
	writePorts(&out, []string{"Launchpad X LPX MIDI In", "IAC Bus"}, []string{"Synth"})
	text := out.String()
	if !strings.Contains(text, "0: Launchpad X LPX MIDI In  <- launchpad") {
		t.Errorf("launchpad not marked:\n%s", text)
	}
	if strings.Contains(text, "IAC Bus  <-") {
		t.Errorf("non-launchpad marked:\n%s", text)
	}
}
