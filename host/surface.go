package host

import (
	"context"
	"time"

	"go-bordl/debug"
	"go-bordl/midi"
	"go-bordl/sequencer"
)

const ledFPS = 30

// SurfaceLink connects a grid controller to a Runner: pad presses become
// presses and edits, and the LEDs follow the published snapshot.
type SurfaceLink struct {
	runner     *Runner
	surface    *midi.Surface
	controller midi.Controller

	snap     sequencer.Snapshot
	prevLEDs map[[2]int]midi.LEDUpdate
}

func NewSurfaceLink(r *Runner, s *midi.Surface, c midi.Controller) *SurfaceLink {
	return &SurfaceLink{
		runner:     r,
		surface:    s,
		controller: c,
		prevLEDs:   make(map[[2]int]midi.LEDUpdate),
	}
}

// Run serves the controller until ctx is cancelled or its pad channel closes.
func (l *SurfaceLink) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / ledFPS)
	defer ticker.Stop()

	pads := l.controller.PadEvents()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-pads:
			if !ok {
				return
			}
			l.handlePad(ev)
		case <-ticker.C:
			l.flushLEDs()
		}
	}
}

func (l *SurfaceLink) handlePad(ev midi.PadEvent) {
	l.runner.Snapshot(&l.snap)
	action, ok := l.surface.Press(ev, &l.snap)
	if !ok {
		return
	}
	debug.Log("pad", "row=%d col=%d -> %+v", ev.Row, ev.Col, action)
	if action.Press {
		l.runner.Press(action.Button)
	}
	if action.Edit {
		l.runner.Send(action.Command)
	}
}

// flushLEDs sends only changed LEDs to the controller
func (l *SurfaceLink) flushLEDs() {
	l.runner.Snapshot(&l.snap)
	frame := l.surface.Render(&l.snap)

	var updates []midi.LEDUpdate
	for _, led := range frame {
		key := [2]int{led.Row, led.Col}
		if prev, ok := l.prevLEDs[key]; ok && prev == led {
			continue
		}
		updates = append(updates, led)
		l.prevLEDs[key] = led
	}
	if len(updates) == 0 {
		return
	}
	if err := l.controller.SetLEDBatch(updates); err != nil {
		debug.LogEvery(20, "led", "flush: %v", err)
		// resend everything next time
		clear(l.prevLEDs)
	}
}
