package midi

import (
	"errors"
	"fmt"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// ErrPortNotFound is returned when no port has the requested name.
var ErrPortNotFound = errors.New("midi: port not found")

// ErrPortsTimeout is returned when the driver does not answer a port scan.
var ErrPortsTimeout = errors.New("midi: port scan timed out")

// Ports lists input and output port names. CoreMIDI can hang, so the scan
// gives up after timeout.
func Ports(timeout time.Duration) (ins, outs []string, err error) {
	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		for _, p := range r.ins {
			ins = append(ins, p.String())
		}
		for _, p := range r.outs {
			outs = append(outs, p.String())
		}
		return ins, outs, nil
	case <-time.After(timeout):
		return nil, nil, ErrPortsTimeout
	}
}

// Senders opens output ports lazily by name and keeps them open.
type Senders struct {
	mu      sync.RWMutex
	senders map[string]func(gomidi.Message) error
}

func NewSenders() *Senders {
	return &Senders{senders: make(map[string]func(gomidi.Message) error)}
}

// Get returns a sender for the given port name, opening it on first use
func (s *Senders) Get(portName string) (func(gomidi.Message) error, error) {
	if portName == "" {
		return nil, fmt.Errorf("%w: no port name", ErrPortNotFound)
	}

	s.mu.RLock()
	if sender, ok := s.senders[portName]; ok {
		s.mu.RUnlock()
		return sender, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if sender, ok := s.senders[portName]; ok {
		return sender, nil
	}

	for _, port := range gomidi.GetOutPorts() {
		if port.String() == portName {
			sender, err := gomidi.SendTo(port)
			if err != nil {
				return nil, fmt.Errorf("open %q: %w", portName, err)
			}
			s.senders[portName] = sender
			return sender, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrPortNotFound, portName)
}

// Output plays voice events on one port.
type Output struct {
	Port string
	send func(gomidi.Message) error
}

// Open returns an Output for portName.
func (s *Senders) Open(portName string) (*Output, error) {
	send, err := s.Get(portName)
	if err != nil {
		return nil, err
	}
	return &Output{Port: portName, send: send}, nil
}

// NewOutput wraps an arbitrary send function.
func NewOutput(name string, send func(gomidi.Message) error) *Output {
	return &Output{Port: name, send: send}
}

// Send writes the events in order and returns the first error.
func (o *Output) Send(events ...Event) error {
	for _, ev := range events {
		msg := ev.Message()
		if msg == nil {
			continue
		}
		if err := o.send(msg); err != nil {
			return fmt.Errorf("%s: %w", o.Port, err)
		}
	}
	return nil
}
