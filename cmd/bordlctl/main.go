package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"time"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"golang.org/x/sync/errgroup"

	"go-bordl/config"
	"go-bordl/debug"
	"go-bordl/host"
	"go-bordl/midi"
	"go-bordl/sequencer"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}

	var err error
	switch args[0] {
	case "render":
		err = renderCmd(args[1:], stdout)
	case "dump":
		err = dumpCmd(args[1:], stdout)
	case "ports":
		err = portsCmd(stdout)
	case "play":
		err = playCmd(args[1:], stdout)
	default:
		usage(stderr)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "bordlctl %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "bordlctl - offline tools for go-bordl projects")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  render  - Run a project offline and print the voice events")
	fmt.Fprintln(w, "  dump    - Print a project as YAML")
	fmt.Fprintln(w, "  ports   - List all MIDI ports")
	fmt.Fprintln(w, "  play    - Play a project to MIDI without the terminal UI")
}

// docFlags selects a document by project name or file path
type docFlags struct {
	project string
	file    string
}

func (d *docFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&d.project, "project", "", "project name (latest save)")
	fs.StringVar(&d.file, "file", "", "document path (.json or .yaml)")
}

// load returns the selected document, or nil when neither flag is set
func (d *docFlags) load() (*sequencer.Document, error) {
	if d.file != "" {
		return sequencer.ReadDocument(d.file)
	}
	if d.project == "" {
		return nil, nil
	}
	store, err := sequencer.DefaultStore()
	if err != nil {
		return nil, err
	}
	return store.LoadProject(d.project, "")
}

func renderCmd(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	var df docFlags
	df.register(fs)
	seconds := fs.Float64("seconds", 4, "length to render")
	rate := fs.Float64("rate", 1000, "frames per second")
	cvEvery := fs.Int("cv", 0, "also print gate/pitch/accent every N frames")
	seed := fs.Int64("seed", 1, "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	doc, err := df.load()
	if err != nil {
		return err
	}
	return render(w, doc, renderOptions{
		Seconds: *seconds,
		Rate:    *rate,
		CVEvery: *cvEvery,
		Seed:    *seed,
	})
}

type renderOptions struct {
	Seconds float64
	Rate    float64
	CVEvery int
	Seed    int64
}

// render runs the engine offline and writes one line per voice event
func render(w io.Writer, doc *sequencer.Document, opts renderOptions) error {
	rate := opts.Rate
	if rate <= 0 {
		rate = sequencer.DefaultSampleRate
	}

	var frame int64
	var werr error
	line := func(format string, args ...any) {
		if _, err := fmt.Fprintf(w, format, args...); err != nil && werr == nil {
			werr = err
		}
	}
	r := host.NewRunner(host.Options{
		SampleRate: rate,
		Rand:       rand.New(rand.NewSource(opts.Seed)),
		Voice:      midi.NewVoice(0, 36, 0, 2),
		Output: func(events []midi.Event) error {
			for _, ev := range events {
				line("%9.4fs  %s\n", float64(frame)/rate, ev)
			}
			return nil
		},
		OnFrame: func(f int64, out sequencer.Outputs) {
			frame = f
			if opts.CVEvery > 0 && f%int64(opts.CVEvery) == 0 {
				line("%9.4fs  cv gate %4.1f pitch %6.3f accent %4.1f\n", float64(f)/rate, out.Gate, out.Pitch, out.Accent)
			}
		},
	})
	if doc != nil {
		if err := r.Send(sequencer.Load(doc)); err != nil {
			return err
		}
	}

	total := int(opts.Seconds * rate)
	block := max(1, int(rate/100))
	for done := 0; done < total; done += block {
		r.Advance(min(block, total-done))
	}
	return werr
}

func dumpCmd(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	var df docFlags
	df.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	doc, err := df.load()
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("need -project or -file")
	}
	return dump(w, doc)
}

func dump(w io.Writer, doc *sequencer.Document) error {
	data, err := sequencer.EncodeYAML(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func portsCmd(w io.Writer) error {
	fmt.Fprintln(w, "(waiting up to 3 seconds...)")
	ins, outs, err := midi.Ports(3 * time.Second)
	if err != nil {
		return fmt.Errorf("%w (CoreMIDI may be hung: sudo killall coreaudiod midiserver)", err)
	}
	writePorts(w, ins, outs)
	return nil
}

func writePorts(w io.Writer, ins, outs []string) {
	fmt.Fprintln(w, "=== MIDI Input Ports ===")
	for i, name := range ins {
		fmt.Fprintf(w, "  %d: %s%s\n", i, name, launchpadMark(name))
	}
	fmt.Fprintln(w, "\n=== MIDI Output Ports ===")
	for i, name := range outs {
		fmt.Fprintf(w, "  %d: %s%s\n", i, name, launchpadMark(name))
	}
}

func launchpadMark(name string) string {
	if strings.Contains(strings.ToLower(name), "launchpad") {
		return "  <- launchpad"
	}
	return ""
}

// playCmd runs the engine in real time against the configured MIDI ports and
// any Launchpad, until interrupted.
func playCmd(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	var df docFlags
	df.register(fs)
	verbose := fs.Bool("debug", false, "write the debug log")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *verbose || cfg.Debug {
		if err := debug.Enable(); err != nil {
			return err
		}
		defer debug.Disable()
	}
	doc, err := df.load()
	if err != nil {
		return err
	}

	opts := host.Options{
		SampleRate: cfg.Audio.SampleRate,
		Block:      time.Duration(cfg.Audio.Block),
	}
	if cfg.MIDI.OutputPort != "" {
		out, err := midi.NewSenders().Open(cfg.MIDI.OutputPort)
		if err != nil {
			return err
		}
		opts.Voice = midi.NewVoice(uint8(cfg.MIDI.Channel), cfg.MIDI.BaseNote, cfg.MIDI.AccentCC, cfg.MIDI.BendRange)
		opts.Output = func(events []midi.Event) error { return out.Send(events...) }
	}
	runner := host.NewRunner(opts)
	if doc != nil {
		if err := runner.Send(sequencer.Load(doc)); err != nil {
			return err
		}
	}

	if cfg.MIDI.ClockPort != "" {
		clock, err := host.AttachClock(runner, cfg.MIDI.ClockPort, cfg.MIDI.ClockDivider)
		if err != nil {
			fmt.Fprintf(w, "midi clock: %v, using internal clock\n", err)
		} else {
			defer clock.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(ctx) })

	deviceMgr := midi.NewDeviceManager()
	g.Go(func() error {
		deviceMgr.Run(ctx)
		return nil
	})
	g.Go(func() error {
		serveSurfaces(ctx, runner, deviceMgr, w)
		return nil
	})

	fmt.Fprintln(w, "playing, ctrl+c to stop")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// serveSurfaces binds each connected Launchpad to the runner
func serveSurfaces(ctx context.Context, r *host.Runner, dm *midi.DeviceManager, w io.Writer) {
	surface := midi.NewSurface(midi.DefaultSurfaceColors())
	links := make(map[string]context.CancelFunc)
	defer func() {
		for _, cancel := range links {
			cancel()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-dm.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case midi.DeviceConnected:
				linkCtx, cancel := context.WithCancel(ctx)
				links[ev.ID] = cancel
				go host.NewSurfaceLink(r, surface, ev.Controller).Run(linkCtx)
				fmt.Fprintf(w, "launchpad connected: %s\n", ev.ID)
			case midi.DeviceDisconnected:
				if cancel, ok := links[ev.ID]; ok {
					cancel()
					delete(links, ev.ID)
				}
				fmt.Fprintf(w, "launchpad disconnected: %s\n", ev.ID)
			}
		}
	}
}
