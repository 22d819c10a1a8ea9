//go:build linux

package gatthost

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paypal/gatt"
	"github.com/user/ble-peripheral/logger"
	"github.com/user/ble-peripheral/peripheral"
	"github.com/user/ble-peripheral/wire/att"
)

const prefix = "HCI"

// Host is a peripheral.Host on a local HCI controller
type Host struct {
	dev   gatt.Device
	cfg   Config
	reads *pendingReads

	// advMu orders controller advertise and stop commands
	advMu sync.Mutex

	mu          sync.Mutex
	poweredOn   bool
	name        string
	advertising bool
	advGen      uint64
	handler     func(peripheral.Event)
	centrals    map[string]gatt.Central
}

var _ peripheral.Host = (*Host)(nil)

// New opens the controller and waits for it to power on
func New(cfg Config) (*Host, error) {
	cfg = cfg.withDefaults()

	dev, err := gatt.NewDevice(
		gatt.LnxDeviceID(cfg.DeviceID, true),
		gatt.LnxMaxConnections(cfg.MaxConnections),
	)
	if err != nil {
		return nil, fmt.Errorf("open hci%d: %w", cfg.DeviceID, err)
	}
	h := newHost(dev, cfg)

	dev.Handle(
		gatt.CentralConnected(h.onCentralConnected),
		gatt.CentralDisconnected(h.onCentralDisconnected),
	)

	states := make(chan gatt.State, 4)
	if err := dev.Init(func(d gatt.Device, s gatt.State) {
		logger.Debug(prefix, "Controller state: %s", s)
		h.mu.Lock()
		h.poweredOn = s == gatt.StatePoweredOn
		h.mu.Unlock()
		select {
		case states <- s:
		default:
		}
	}); err != nil {
		return nil, fmt.Errorf("init controller: %w", err)
	}

	deadline := time.After(cfg.InitTimeout)
	for {
		select {
		case s := <-states:
			if s == gatt.StatePoweredOn {
				logger.Info(prefix, "🔌 Controller powered on")
				return h, nil
			}
		case <-deadline:
			return nil, ErrNotPoweredOn
		}
	}
}

func newHost(dev gatt.Device, cfg Config) *Host {
	return &Host{
		dev:      dev,
		cfg:      cfg.withDefaults(),
		reads:    newPendingReads(),
		handler:  func(peripheral.Event) {},
		centrals: make(map[string]gatt.Central),
	}
}

// PeripheralModeSupported reports whether the controller is powered on
func (h *Host) PeripheralModeSupported() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.poweredOn
}

// Advertiser returns the controller's advertiser
func (h *Host) Advertiser() peripheral.Advertiser {
	return hciAdvertiser{h}
}

// SetName stores the name put in the next advertisement
func (h *Host) SetName(name string) error {
	if name == "" {
		return fmt.Errorf("empty device name")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.name = name
	return nil
}

// AddService adds service to the controller's attribute database. Reads of
// its characteristics are delivered as EventReadRequested.
func (h *Host) AddService(service *peripheral.Service) error {
	svc := gatt.NewService(gatt.MustParseUUID(service.UUID.String()))
	for _, c := range service.Characteristics {
		if !c.IsReadable() {
			continue
		}
		charUUID := c.UUID
		svc.AddCharacteristic(gatt.MustParseUUID(charUUID.String())).HandleReadFunc(
			func(rsp gatt.ResponseWriter, req *gatt.ReadRequest) {
				h.serveRead(rsp, req, charUUID)
			})
	}
	if err := h.dev.AddService(svc); err != nil {
		return fmt.Errorf("add service %s: %w", service.UUID, err)
	}
	return nil
}

// serveRead runs on the connection's goroutine and blocks until the
// peripheral answers or ResponseTimeout passes
func (h *Host) serveRead(rsp gatt.ResponseWriter, req *gatt.ReadRequest, charUUID uuid.UUID) {
	address := req.Central.ID()
	id, result := h.reads.begin(address)

	h.emit(peripheral.Event{
		Kind:               peripheral.EventReadRequested,
		Device:             peripheral.Device{Address: address},
		RequestID:          id,
		Offset:             req.Offset,
		CharacteristicUUID: charUUID,
	})

	select {
	case r := <-result:
		if r.status != peripheral.StatusSuccess {
			rsp.SetStatus(att.CodeForStatus(int(r.status)))
			return
		}
		value := r.value
		if req.Cap > 0 && len(value) > req.Cap {
			value = value[:req.Cap]
		}
		rsp.SetStatus(gatt.StatusSuccess)
		rsp.Write(value)
	case <-time.After(h.cfg.ResponseTimeout):
		h.reads.abandon(id)
		logger.Debug(prefix, "No response for read %d from %s", id, address)
		rsp.SetStatus(gatt.StatusUnexpectedError)
	}
}

// SendResponse completes a read parked in serveRead
func (h *Host) SendResponse(device peripheral.Device, requestID int, status peripheral.Status, offset int, value []byte) bool {
	return h.reads.complete(requestID, device.Address, status, value)
}

// SetEventHandler registers the function events are delivered to
func (h *Host) SetEventHandler(handler func(peripheral.Event)) {
	if handler == nil {
		handler = func(peripheral.Event) {}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = handler
}

// Close stops advertising and disconnects every central
func (h *Host) Close() error {
	hciAdvertiser{h}.StopAdvertising()
	h.mu.Lock()
	centrals := make([]gatt.Central, 0, len(h.centrals))
	for _, c := range h.centrals {
		centrals = append(centrals, c)
	}
	h.mu.Unlock()
	for _, c := range centrals {
		c.Close()
	}
	return nil
}

func (h *Host) emit(ev peripheral.Event) {
	h.mu.Lock()
	handler := h.handler
	h.mu.Unlock()
	handler(ev)
}

func (h *Host) onCentralConnected(c gatt.Central) {
	h.mu.Lock()
	h.centrals[c.ID()] = c
	// The controller stops advertising when it accepts a connection
	h.advertising = false
	h.mu.Unlock()

	logger.Debug(prefix, "📱 Central %s connected (mtu %d)", c.ID(), c.MTU())
	h.emit(peripheral.Event{
		Kind:      peripheral.EventConnectionChanged,
		Device:    peripheral.Device{Address: c.ID()},
		Status:    peripheral.StatusSuccess,
		LinkState: peripheral.LinkConnected,
	})
}

func (h *Host) onCentralDisconnected(c gatt.Central) {
	h.mu.Lock()
	delete(h.centrals, c.ID())
	h.mu.Unlock()

	if n := h.reads.abandonAddress(c.ID()); n > 0 {
		logger.Debug(prefix, "Dropped %d unanswered reads from %s", n, c.ID())
	}
	h.emit(peripheral.Event{
		Kind:      peripheral.EventConnectionChanged,
		Device:    peripheral.Device{Address: c.ID()},
		Status:    peripheral.StatusSuccess,
		LinkState: peripheral.LinkDisconnected,
	})
}

type hciAdvertiser struct {
	h *Host
}

// StartAdvertising advertises the name and service UUIDs. The result is
// reported asynchronously like any other host event.
func (a hciAdvertiser) StartAdvertising(settings peripheral.AdvertiseSettings, data peripheral.AdvertiseData) {
	h := a.h
	h.mu.Lock()
	if h.advertising {
		h.mu.Unlock()
		go h.emit(peripheral.Event{Kind: peripheral.EventAdvertiseFailed, ErrorCode: peripheral.AdvertiseFailedAlreadyStarted})
		return
	}
	name := ""
	if data.IncludeDeviceName {
		name = h.name
	}
	h.advertising = true
	h.advGen++
	gen := h.advGen
	h.mu.Unlock()

	uuids := make([]gatt.UUID, 0, len(data.ServiceUUIDs))
	for _, u := range data.ServiceUUIDs {
		uuids = append(uuids, gatt.MustParseUUID(u.String()))
	}

	go func() {
		h.advMu.Lock()
		if !h.current(gen) {
			h.advMu.Unlock()
			return
		}
		err := h.dev.AdvertiseNameAndServices(name, uuids)
		h.advMu.Unlock()

		// A stop issued meanwhile is queued behind advMu and will
		// silence the controller; its result is not reported.
		if !h.current(gen) {
			return
		}
		if err != nil {
			logger.Warn(prefix, "⚠️  Advertise failed: %v", err)
			h.mu.Lock()
			h.advertising = false
			h.mu.Unlock()
			h.emit(peripheral.Event{Kind: peripheral.EventAdvertiseFailed, ErrorCode: peripheral.AdvertiseFailedInternalError})
			return
		}
		h.emit(peripheral.Event{Kind: peripheral.EventAdvertiseStarted})
	}()
}

// StopAdvertising cancels any start still in flight and stops the
// controller once that start has been issued
func (a hciAdvertiser) StopAdvertising() {
	h := a.h
	h.mu.Lock()
	h.advertising = false
	h.advGen++
	h.mu.Unlock()

	h.advMu.Lock()
	defer h.advMu.Unlock()
	if err := h.dev.StopAdvertising(); err != nil {
		logger.Debug(prefix, "Stop advertising: %v", err)
	}
}

// current reports whether gen is still the latest advertise request
func (h *Host) current(gen uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.advGen == gen
}
