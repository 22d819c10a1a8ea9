package wire

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrDeviceNotFound is returned when no device with the UUID is attached
	ErrDeviceNotFound = errors.New("device not found")
	// ErrNotAdvertising is returned when connecting to a device that is not connectable
	ErrNotAdvertising = errors.New("device not advertising")
	// ErrNotConnected is returned for operations on a missing connection
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyConnected is returned when a connection already exists
	ErrAlreadyConnected = errors.New("already connected")
	// ErrStopped is returned by a wire that was never started or has been stopped
	ErrStopped = errors.New("wire stopped")
)

// Medium is the shared simulated radio. Every Wire attached to the same
// Medium can discover and connect to the others.
type Medium struct {
	mu      sync.RWMutex
	devices map[string]*Wire

	realistic bool
}

// MediumOption configures a Medium
type MediumOption func(*Medium)

// WithRealisticTiming adds connection, delivery and discovery latency in the
// ranges a real BLE link shows.
func WithRealisticTiming() MediumOption {
	return func(m *Medium) {
		m.realistic = true
	}
}

// NewMedium creates an empty medium
func NewMedium(opts ...MediumOption) *Medium {
	m := &Medium{
		devices: make(map[string]*Wire),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Medium) attach(w *Wire) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.devices[w.hardwareUUID]; exists {
		return fmt.Errorf("device %s already attached", w.hardwareUUID)
	}
	m.devices[w.hardwareUUID] = w
	return nil
}

func (m *Medium) detach(w *Wire) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.devices[w.hardwareUUID] == w {
		delete(m.devices, w.hardwareUUID)
	}
}

func (m *Medium) lookup(hardwareUUID string) (*Wire, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.devices[hardwareUUID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, hardwareUUID)
	}
	return w, nil
}

// Discover returns every device currently advertising, ordered by UUID
func (m *Medium) Discover() []Advertisement {
	m.mu.RLock()
	wires := make([]*Wire, 0, len(m.devices))
	for _, w := range m.devices {
		wires = append(wires, w)
	}
	m.mu.RUnlock()

	var out []Advertisement
	for _, w := range wires {
		if data, ok := w.currentAdvertisement(); ok {
			out = append(out, Advertisement{
				HardwareUUID: w.hardwareUUID,
				Data:         data,
				RSSI:         randomRSSI(),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HardwareUUID < out[j].HardwareUUID })
	return out
}

func (m *Medium) connectionDelay() time.Duration {
	if !m.realistic {
		return 0
	}
	return randomDelay(MinConnectionDelay, MaxConnectionDelay)
}

func (m *Medium) deliveryDelay() time.Duration {
	if !m.realistic {
		return 0
	}
	return randomDelay(MinConnectionInterval, MaxConnectionInterval)
}

func (m *Medium) discoveryDelay() time.Duration {
	if !m.realistic {
		return 0
	}
	return randomDelay(MinServiceDiscoveryDelay, MaxServiceDiscoveryDelay)
}
