package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"golang.org/x/sync/errgroup"

	"go-bordl/config"
	"go-bordl/debug"
	"go-bordl/host"
	"go-bordl/midi"
	"go-bordl/sequencer"
	"go-bordl/theme"
	"go-bordl/tui"
)

func main() {
	debugFlag := flag.Bool("debug", false, "write ~/.config/go-bordl/debug.log")
	projectFlag := flag.String("project", "", "project to open (default: last project)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if *debugFlag || cfg.Debug {
		if err := debug.Enable(); err != nil {
			fmt.Fprintf(os.Stderr, "debug log: %v\n", err)
		}
		defer debug.Disable()
	}

	// Load theme
	palette := theme.Default()
	if cfg.UI.Palette != "" {
		p, err := theme.LoadGPL(cfg.UI.Palette)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v, using built-in palette\n", err)
		} else {
			palette = p
		}
	}
	th := theme.New(palette)

	// MIDI voice out
	opts := host.Options{
		SampleRate: cfg.Audio.SampleRate,
		Block:      time.Duration(cfg.Audio.Block),
	}
	if cfg.MIDI.OutputPort != "" {
		out, err := midi.NewSenders().Open(cfg.MIDI.OutputPort)
		if err != nil {
			fmt.Fprintf(os.Stderr, "midi out: %v\n", err)
		} else {
			opts.Voice = midi.NewVoice(uint8(cfg.MIDI.Channel), cfg.MIDI.BaseNote, cfg.MIDI.AccentCC, cfg.MIDI.BendRange)
			opts.Output = func(events []midi.Event) error { return out.Send(events...) }
		}
	}
	runner := host.NewRunner(opts)

	project := *projectFlag
	if project == "" {
		project = cfg.UI.LastProject
	}
	if project == "" {
		project = "untitled"
	}
	store, err := sequencer.DefaultStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "projects disabled: %v\n", err)
	} else if doc, err := store.LoadProject(project, ""); err == nil {
		if err := runner.Send(sequencer.Load(doc)); err != nil {
			fmt.Fprintf(os.Stderr, "load %s: %v\n", project, err)
		}
	} else if !errors.Is(err, sequencer.ErrNoSaves) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", project, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.MIDI.ClockPort != "" {
		clock, err := host.AttachClock(runner, cfg.MIDI.ClockPort, cfg.MIDI.ClockDivider)
		if err != nil {
			fmt.Fprintf(os.Stderr, "midi clock: %v, using internal clock\n", err)
		} else {
			defer clock.Close()
		}
	}

	g.Go(func() error { return runner.Run(ctx) })

	// Create MIDI device manager (handles hot-plug)
	deviceMgr := midi.NewDeviceManager()
	g.Go(func() error {
		deviceMgr.Run(ctx)
		return nil
	})

	fmt.Println("go-bordl")
	fmt.Println("Connect a Launchpad any time - it will be detected automatically")
	fmt.Println("")

	m := tui.NewModel(ctx, runner, deviceMgr, store, th)
	m.Project = project
	p := tea.NewProgram(m, tea.WithAltScreen())

	_, runErr := p.Run()
	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
	}

	cfg.UI.LastProject = project
	if err := cfg.Save(); err != nil {
		debug.Log("main", "save config: %v", err)
	}

	if runErr != nil {
		fmt.Printf("Error: %v\n", runErr)
		os.Exit(1)
	}
}
