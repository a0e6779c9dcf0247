package midi

import (
	"fmt"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-bordl/debug"
)

// Transport receives clock and transport messages from a ClockListener.
// Calls arrive on the driver's goroutine and must not block.
type Transport interface {
	ClockPulse()
	Start()
	Stop()
	Continue()
}

// ClockListener follows MIDI clock on an input port and reports one pulse
// every Divider timing clocks (6 = sixteenth notes at 24 ppqn).
type ClockListener struct {
	Divider int

	mu       sync.Mutex
	count    int
	t        Transport
	stopFunc func()
}

// NewClockListener returns a listener that is not attached to a port yet.
func NewClockListener(divider int, t Transport) *ClockListener {
	if divider < 1 {
		divider = 1
	}
	return &ClockListener{Divider: divider, t: t}
}

// ListenClock opens the named input port and starts listening.
func ListenClock(portName string, divider int, t Transport) (*ClockListener, error) {
	var in drivers.In
	for _, p := range gomidi.GetInPorts() {
		if p.String() == portName {
			in = p
			break
		}
	}
	if in == nil {
		return nil, fmt.Errorf("%w: %q", ErrPortNotFound, portName)
	}

	c := NewClockListener(divider, t)
	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
		c.Handle(msg)
	}, gomidi.HandleError(func(err error) {
		debug.Log("clock", "listener error on %s: %v", portName, err)
	}))
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	c.stopFunc = stop
	debug.Log("clock", "following %s, %d clocks per step", portName, c.Divider)
	return c, nil
}

// Handle processes one incoming message.
func (c *ClockListener) Handle(msg gomidi.Message) {
	switch {
	case msg.Is(gomidi.TimingClockMsg):
		c.mu.Lock()
		fire := c.count%c.Divider == 0
		c.count++
		c.mu.Unlock()
		if fire {
			c.t.ClockPulse()
		}
	case msg.Is(gomidi.StartMsg):
		c.mu.Lock()
		c.count = 0
		c.mu.Unlock()
		c.t.Start()
	case msg.Is(gomidi.ContinueMsg):
		c.t.Continue()
	case msg.Is(gomidi.StopMsg):
		c.t.Stop()
	}
}

func (c *ClockListener) Close() error {
	if c.stopFunc != nil {
		c.stopFunc()
		c.stopFunc = nil
	}
	return nil
}
