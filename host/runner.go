package host

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"go-bordl/debug"
	"go-bordl/midi"
	"go-bordl/sequencer"
)

// maxCatchUp bounds how much late audio a block renders before skipping ahead.
const maxCatchUp = 100 * time.Millisecond

// uiRate is how often Updates fires while running, per second.
const uiRate = 30

// FrameClock counts rendered frames. It is the engine's clock: Now is the
// frame count converted to time.
type FrameClock struct {
	rate   float64
	frames int64
}

func NewFrameClock(sampleRate float64) *FrameClock {
	if sampleRate <= 0 {
		sampleRate = sequencer.DefaultSampleRate
	}
	return &FrameClock{rate: sampleRate}
}

func (c *FrameClock) SampleRate() float64 { return c.rate }

func (c *FrameClock) Now() time.Duration {
	return time.Duration(float64(c.frames) / c.rate * float64(time.Second))
}

// Frames returns the number of frames rendered so far.
func (c *FrameClock) Frames() int64 { return c.frames }

// Options configure a Runner. Zero values pick defaults.
type Options struct {
	SampleRate float64
	Block      time.Duration

	// ExternalClock patches the clock and reset jacks; pulses then come
	// from ClockPulse and Start.
	ExternalClock bool

	Rand  sequencer.Rand
	Voice *midi.Voice
	// Output receives the voice events of each frame. The slice is reused.
	Output func(events []midi.Event) error
	// OnFrame observes every rendered frame.
	OnFrame func(frame int64, out sequencer.Outputs)
}

// Runner owns the engine and drives it in real time. Other goroutines talk to
// it through Send, Press and the Transport methods and read state with
// Snapshot.
type Runner struct {
	engine *sequencer.Engine
	clock  *FrameClock
	opts   Options
	voice  *midi.Voice

	presses     atomic.Uint32
	clockPulses atomic.Int32
	resetArmed  atomic.Bool  // reset rides on the next clock pulse
	runWanted   atomic.Int32 // -1 none, 0 stop, 1 run

	in        sequencer.Inputs
	high      uint32 // buttons held high on the previous frame
	clockHigh bool
	resetHigh bool
	events    []midi.Event

	notifyEvery int64
	lastNotify  int64
	updates     chan struct{}
}

func NewRunner(opts Options) *Runner {
	if opts.Block <= 0 {
		opts.Block = 2 * time.Millisecond
	}
	clock := NewFrameClock(opts.SampleRate)
	opts.SampleRate = clock.SampleRate()

	r := &Runner{
		engine:      sequencer.NewEngine(clock, sequencer.Options{Rand: opts.Rand}),
		clock:       clock,
		opts:        opts,
		voice:       opts.Voice,
		events:      make([]midi.Event, 0, 8),
		notifyEvery: max(1, int64(opts.SampleRate/uiRate)),
		updates:     make(chan struct{}, 1),
	}
	r.runWanted.Store(-1)
	r.setExternalClock(opts.ExternalClock)
	r.engine.Publish()
	return r
}

// Engine returns the engine. Only call its audio-goroutine methods when Run
// is not active.
func (r *Runner) Engine() *sequencer.Engine { return r.engine }

// Clock returns the frame clock.
func (r *Runner) Clock() *FrameClock { return r.clock }

// Send queues an edit for the next block.
func (r *Runner) Send(cmd sequencer.Command) error {
	err := r.engine.Send(cmd)
	if errors.Is(err, sequencer.ErrQueueFull) {
		debug.LogEvery(10, "host", "dropped %v: %v", cmd.Op, err)
	} else if err == nil {
		debug.Log("cmd", "%v lane=%d attr=%d knob=%v value=%.3f", cmd.Op, cmd.Lane, cmd.Attr, cmd.Knob, cmd.Value)
	}
	return err
}

// Press queues a momentary button press.
func (r *Runner) Press(b sequencer.Button) {
	if b < 0 || int(b) >= sequencer.NumButtons {
		return
	}
	r.presses.Or(1 << uint(b))
}

// Snapshot copies the last published engine state.
func (r *Runner) Snapshot(dst *sequencer.Snapshot) {
	r.engine.Snapshot(dst)
}

// Updates fires (at most uiRate times a second) after a snapshot is published.
func (r *Runner) Updates() <-chan struct{} { return r.updates }

// ClockPulse injects one external clock pulse.
func (r *Runner) ClockPulse() { r.clockPulses.Add(1) }

// Start resets the sequence and starts the clock. With an external clock the
// reset arrives together with the next clock pulse, so that pulse plays the
// first step.
func (r *Runner) Start() {
	if r.opts.ExternalClock {
		r.resetArmed.Store(true)
	} else {
		r.Press(sequencer.ButtonReset)
	}
	r.runWanted.Store(1)
}

// Stop halts the clock.
func (r *Runner) Stop() { r.runWanted.Store(0) }

// Continue restarts the clock where it stopped.
func (r *Runner) Continue() { r.runWanted.Store(1) }

var _ midi.Transport = (*Runner)(nil)

// AttachClock follows MIDI clock on port. When the port cannot be opened the
// runner keeps its internal clock and the error is returned. Call before Run.
func AttachClock(r *Runner, port string, divider int) (io.Closer, error) {
	return attachClock(r, func(t midi.Transport) (io.Closer, error) {
		return midi.ListenClock(port, divider, t)
	})
}

func attachClock(r *Runner, open func(midi.Transport) (io.Closer, error)) (io.Closer, error) {
	r.setExternalClock(true)
	c, err := open(r)
	if err != nil {
		r.setExternalClock(false)
		debug.Log("host", "clock port: %v, using internal clock", err)
		return nil, err
	}
	return c, nil
}

func (r *Runner) setExternalClock(on bool) {
	r.opts.ExternalClock = on
	r.in.ExtClock.Connected = on
	r.in.Reset.Connected = on
}

// Advance renders n frames, then publishes a snapshot. Run calls it once per
// block; without Run it renders offline.
func (r *Runner) Advance(n int) {
	if w := r.runWanted.Swap(-1); w >= 0 && (w == 1) != r.engine.Running() {
		r.Press(sequencer.ButtonRun)
	}
	for i := 0; i < n; i++ {
		r.frame()
	}
	if !r.engine.Publish() {
		debug.LogEvery(100, "host", "snapshot busy, skipped publish")
		return
	}
	if r.clock.frames-r.lastNotify >= r.notifyEvery {
		r.lastNotify = r.clock.frames
		select {
		case r.updates <- struct{}{}:
		default:
		}
	}
}

// frame renders one sample. A press or pulse is one high frame followed by
// at least one low frame so the engine sees every edge.
func (r *Runner) frame() {
	if r.high != 0 {
		r.setButtons(r.high, 0)
		r.high = 0
	} else if p := r.presses.Swap(0); p != 0 {
		r.setButtons(p, 10)
		r.high = p
	}

	r.clockHigh = !r.clockHigh && take(&r.clockPulses)
	r.resetHigh = r.clockHigh && r.resetArmed.Swap(false)
	r.in.ExtClock.Value = level(r.clockHigh)
	r.in.Reset.Value = level(r.resetHigh)

	out := r.engine.Tick(&r.in)
	frame := r.clock.frames
	r.clock.frames++

	if r.opts.OnFrame != nil {
		r.opts.OnFrame(frame, out)
	}
	if r.voice == nil {
		return
	}
	r.events = r.voice.Process(out, r.events[:0])
	if len(r.events) > 0 {
		r.emit(r.events)
	}
}

func (r *Runner) setButtons(mask uint32, v float64) {
	for i := 0; i < sequencer.NumButtons; i++ {
		if mask&(1<<uint(i)) != 0 {
			r.in.Buttons.Set(sequencer.Button(i), v)
		}
	}
}

func (r *Runner) emit(events []midi.Event) {
	if r.opts.Output == nil {
		return
	}
	if err := r.opts.Output(events); err != nil {
		debug.LogEvery(50, "host", "midi out: %v", err)
	}
}

// take decrements n if it is positive.
func take(n *atomic.Int32) bool {
	for {
		v := n.Load()
		if v <= 0 {
			return false
		}
		if n.CompareAndSwap(v, v-1) {
			return true
		}
	}
}

func level(high bool) float64 {
	if high {
		return 10
	}
	return 0
}

// framesDue returns how many frames to render to catch up with elapsed wall
// time, and how many to skip when the backlog exceeds limit.
func framesDue(elapsed time.Duration, rate float64, done, limit int64) (render, skip int64) {
	due := int64(elapsed.Seconds()*rate) - done
	if due <= 0 {
		return 0, 0
	}
	if due > limit {
		return limit, due - limit
	}
	return due, 0
}

// Run drives the engine from wall time until ctx is cancelled, then
// releases any sounding note.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.Block)
	defer ticker.Stop()

	limit := int64(r.opts.SampleRate * maxCatchUp.Seconds())
	start := time.Now()
	var done int64
	debug.Log("host", "running at %.0f Hz, block %v", r.opts.SampleRate, r.opts.Block)

	for {
		select {
		case <-ctx.Done():
			r.release()
			return ctx.Err()
		case now := <-ticker.C:
			render, skip := framesDue(now.Sub(start), r.opts.SampleRate, done, limit)
			if skip > 0 {
				debug.Log("host", "late: skipping %d frames", skip)
			}
			r.Advance(int(render))
			done += render + skip
		}
	}
}

func (r *Runner) release() {
	if r.voice == nil {
		return
	}
	r.events = r.voice.Off(r.events[:0])
	if len(r.events) > 0 {
		r.emit(r.events)
	}
}
