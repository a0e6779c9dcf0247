package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-bordl/debug"
)

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// DeviceManager handles hot-plug detection of Launchpad surfaces
type DeviceManager struct {
	controllers map[string]Controller
	mu          sync.RWMutex
	events      chan DeviceEvent
	pollRate    time.Duration
	scanTimeout time.Duration
}

// NewDeviceManager creates a new device manager
func NewDeviceManager() *DeviceManager {
	return &DeviceManager{
		controllers: make(map[string]Controller),
		events:      make(chan DeviceEvent, 16),
		pollRate:    time.Second,
		scanTimeout: 3 * time.Second,
	}
}

// Events returns a channel of device connect/disconnect events. It is closed
// when Run returns.
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	dm.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan(ctx)
		}
	}
}

func (dm *DeviceManager) scan(ctx context.Context) {
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{inPorts: gomidi.GetInPorts(), outPorts: gomidi.GetOutPorts()}
	}()

	var ports portsResult
	select {
	case ports = <-ch:
	case <-time.After(dm.scanTimeout):
		// CoreMIDI is hung - skip this scan
		debug.LogEvery(10, "devices", "port scan timed out")
		return
	case <-ctx.Done():
		return
	}

	seen := make(map[string]bool)
	for _, inPort := range ports.inPorts {
		name := strings.ToLower(inPort.String())
		if !isLaunchpad(name) {
			continue
		}
		id := inPort.String()
		seen[id] = true

		dm.mu.RLock()
		_, exists := dm.controllers[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		var outPort drivers.Out
		for _, op := range ports.outPorts {
			if strings.ToLower(op.String()) == name {
				outPort = op
				break
			}
		}

		lp, err := NewLaunchpadController(id, inPort, outPort)
		if err != nil {
			debug.Log("devices", "open %s: %v", id, err)
			continue
		}
		dm.add(ctx, id, lp)
	}
	dm.prune(ctx, seen)
}

func (dm *DeviceManager) add(ctx context.Context, id string, c Controller) {
	dm.mu.Lock()
	dm.controllers[id] = c
	dm.mu.Unlock()
	debug.Log("devices", "connected %s", id)
	dm.emit(ctx, DeviceEvent{Type: DeviceConnected, Controller: c, ID: id})
}

// prune closes controllers whose ports went away
func (dm *DeviceManager) prune(ctx context.Context, seen map[string]bool) {
	dm.mu.Lock()
	var gone []string
	for id, c := range dm.controllers {
		if !seen[id] {
			c.Close()
			delete(dm.controllers, id)
			gone = append(gone, id)
		}
	}
	dm.mu.Unlock()

	for _, id := range gone {
		debug.Log("devices", "disconnected %s", id)
		dm.emit(ctx, DeviceEvent{Type: DeviceDisconnected, ID: id})
	}
}

func (dm *DeviceManager) emit(ctx context.Context, ev DeviceEvent) {
	select {
	case dm.events <- ev:
	case <-ctx.Done():
	}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}

func isLaunchpad(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "launchpad") && strings.Contains(name, "midi")
}
