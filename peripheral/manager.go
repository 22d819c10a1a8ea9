// Package peripheral runs a BLE peripheral: it owns a one-characteristic GATT
// profile, advertises it, serves read requests and refreshes the
// characteristic value on a timer. All radio work goes through a Host.
package peripheral

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/user/ble-peripheral/dataconv"
	"github.com/user/ble-peripheral/logger"
)

// Manager is the peripheral lifecycle manager
type Manager struct {
	host       Host
	advertiser Advertiser
	callback   Callback
	cfg        Config
	prefix     string

	service *Service
	char    *Characteristic
	updater *Updater

	ctx    context.Context
	cancel context.CancelFunc

	setupOnce sync.Once
	setupErr  error

	mu        sync.Mutex
	state     State
	central   *Device
	requested bool
	closed    bool
}

// New checks that host can act as a peripheral and builds the GATT profile.
// It returns ErrUnsupportedCapability if the host lacks peripheral mode or
// has no advertiser. The profile is not registered until SetupProfile.
func New(host Host, callback Callback, cfg Config) (*Manager, error) {
	if host == nil || !host.PeripheralModeSupported() {
		return nil, fmt.Errorf("%w: multiple advertisement unavailable", ErrUnsupportedCapability)
	}
	advertiser := host.Advertiser()
	if advertiser == nil {
		return nil, fmt.Errorf("%w: no advertiser", ErrUnsupportedCapability)
	}
	if callback == nil {
		callback = nopCallback{}
	}
	cfg = cfg.withDefaults()

	char := NewCharacteristic(CharacteristicUUID, PropertyRead, PermissionRead, MaxCharacteristicLength)
	service := &Service{
		UUID:            ServiceUUID,
		Type:            ServiceTypePrimary,
		Characteristics: []*Characteristic{char},
	}

	prefix := fmt.Sprintf("%s Peripheral", cfg.Name)

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		host:       host,
		advertiser: advertiser,
		callback:   callback,
		cfg:        cfg,
		prefix:     prefix,
		service:    service,
		char:       char,
		updater:    NewUpdater(char, cfg.UpdateInterval, cfg.Generator, prefix),
		ctx:        ctx,
		cancel:     cancel,
		state:      StateIdle,
	}

	host.SetEventHandler(m.HandleEvent)
	return m, nil
}

// Service returns the GATT service owned by the manager
func (m *Manager) Service() *Service {
	return m.service
}

// Characteristic returns the read characteristic
func (m *Manager) Characteristic() *Characteristic {
	return m.char
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetupProfile registers the service with the host and starts the value
// updater. Only the first call has an effect; later calls return its result.
func (m *Manager) SetupProfile() error {
	m.setupOnce.Do(func() {
		if err := m.host.AddService(m.service); err != nil {
			m.setupErr = fmt.Errorf("add service %s: %w", m.service.UUID, err)
			return
		}
		logger.Info(m.prefix, "📋 Registered service %s", m.service.UUID)
		m.updater.Start(m.ctx)
	})
	return m.setupErr
}

// StartAdvertising asks the host to advertise the service. The outcome is
// reported through OnAdvertisingStarted or OnAdvertisingFailed.
func (m *Manager) StartAdvertising() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.state = StateAdvertising
	m.requested = true
	m.mu.Unlock()

	if err := m.host.SetName(m.cfg.Name); err != nil {
		logger.Error(m.prefix, "could not start advertising: set name: %v", err)
		m.advertisingFailed(AdvertiseFailedInternalError)
		return
	}

	settings := AdvertiseSettings{
		Mode:        m.cfg.AdvertiseMode,
		TxPower:     m.cfg.TxPower,
		Connectable: true,
	}
	data := AdvertiseData{
		IncludeDeviceName: true,
		ServiceUUIDs:      []uuid.UUID{m.service.UUID},
	}

	logger.Info(m.prefix, "📡 Requesting advertising as %q", m.cfg.Name)
	m.advertiser.StartAdvertising(settings, data)
}

// StopAdvertising asks the host to stop and reports OnAdvertisingStopped
// right away. The host does not confirm the stop, so a failed stop looks
// the same as a successful one. A start result still in flight is dropped.
func (m *Manager) StopAdvertising() {
	if m.advertiser == nil {
		return
	}

	m.mu.Lock()
	m.requested = false
	if m.state == StateAdvertising {
		m.state = StateIdle
	}
	m.mu.Unlock()

	m.advertiser.StopAdvertising()

	logger.Info(m.prefix, "📡 Advertising stopped")
	m.callback.OnAdvertisingStopped()
}

func (m *Manager) advertisingFailed(code int) {
	m.mu.Lock()
	m.requested = false
	if m.state == StateAdvertising {
		m.state = StateIdle
	}
	m.mu.Unlock()

	logger.Error(m.prefix, "❌ Advertising failed: %s", AdvertiseErrorString(code))
	m.callback.OnAdvertisingFailed(code)
}

// HandleEvent applies a host event. Hosts deliver events here in the order
// they occur; it is safe to call from any goroutine.
func (m *Manager) HandleEvent(ev Event) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	from := m.state
	next, act := transition(from, m.requested, ev)
	m.state = next
	switch act {
	case actionAdvertisingFailed:
		if ev.ErrorCode != AdvertiseFailedAlreadyStarted {
			m.requested = false
		}
	case actionCentralConnected:
		d := ev.Device
		m.central = &d
	case actionCentralDisconnected:
		m.central = nil
	}
	m.mu.Unlock()

	if from != next {
		logger.Debug(m.prefix, "State %s -> %s on %s", from, next, ev.Kind)
		logger.DebugJSON(m.prefix, "Snapshot", m.Snapshot())
	}

	switch act {
	case actionCentralConnected:
		logger.Info(m.prefix, "📱 Central %s connected", shortAddress(ev.Device.Address))
		m.callback.OnCentralConnected(ev.Device)
		m.StopAdvertising()

	case actionCentralDisconnected:
		logger.Info(m.prefix, "📱 Central %s disconnected", shortAddress(ev.Device.Address))
		m.callback.OnCentralDisconnected(ev.Device)
		m.StartAdvertising()

	case actionAdvertisingStarted:
		logger.Info(m.prefix, "📡 Advertising started")
		m.callback.OnAdvertisingStarted()

	case actionAdvertisingFailed:
		logger.Error(m.prefix, "❌ Advertising failed: %s", AdvertiseErrorString(ev.ErrorCode))
		m.callback.OnAdvertisingFailed(ev.ErrorCode)

	case actionServeRead:
		m.serveRead(ev)

	case actionIgnore:
		logger.Debug(m.prefix, "Ignored %s event (status=%s)", ev.Kind, ev.Status)
	}
}

func (m *Manager) serveRead(ev Event) {
	if ev.CharacteristicUUID != m.char.UUID {
		logger.Debug(m.prefix, "Read request for unknown characteristic %s", ev.CharacteristicUUID)
		return
	}

	value := m.char.Value()
	logger.Debug(m.prefix, "📖 Device %s tried to read characteristic %s (offset %d), value: [%s]",
		shortAddress(ev.Device.Address), ev.CharacteristicUUID, ev.Offset, dataconv.BytesToHex(value))

	if ev.Offset >= m.char.MaxLength {
		logger.Debug(m.prefix, "Invalid offset %d when trying to read characteristic, no response sent", ev.Offset)
		return
	}

	status := StatusSuccess
	switch {
	case ev.Offset == 0:
	case !m.cfg.PartialReads:
		status = StatusInvalidOffset
	case ev.Offset < 0 || ev.Offset > len(value):
		status = StatusInvalidOffset
	default:
		value = value[ev.Offset:]
	}

	m.host.SendResponse(ev.Device, ev.RequestID, status, ev.Offset, value)
}

// Close stops the updater and advertising and detaches from the host.
// Events delivered after Close are dropped.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.state = StateIdle
	m.central = nil
	m.requested = false
	m.mu.Unlock()

	m.updater.Stop()
	m.cancel()
	m.advertiser.StopAdvertising()
	m.host.SetEventHandler(func(Event) {})
	logger.Info(m.prefix, "Closed")
}

func shortAddress(addr string) string {
	if len(addr) > 8 {
		return addr[:8]
	}
	return addr
}

type nopCallback struct{}

func (nopCallback) OnAdvertisingStarted() {}
func (nopCallback) OnAdvertisingFailed(int) {}
func (nopCallback) OnAdvertisingStopped() {}
func (nopCallback) OnCentralConnected(Device) {}
func (nopCallback) OnCentralDisconnected(Device) {}
