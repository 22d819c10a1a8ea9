// Package android runs the peripheral on the simulated Android Bluetooth stack
package android

import (
	"fmt"

	"github.com/user/ble-peripheral/kotlin"
	"github.com/user/ble-peripheral/logger"
	"github.com/user/ble-peripheral/peripheral"
	"github.com/user/ble-peripheral/wire"
)

// NewAndroid wraps w in a simulated Android phone with the given controller
// features. The wire must already be started.
func NewAndroid(w *wire.Wire, features kotlin.AdapterFeatures) *Android {
	manager := kotlin.NewBluetoothManager(w, features)
	a := &Android{
		hardwareUUID: w.HardwareUUID(),
		wire:         w,
		manager:      manager,
		adapter:      manager.GetAdapter(),
		handler:      func(peripheral.Event) {},
		centrals:     make(map[string]*kotlin.BluetoothDevice),
	}
	if le := a.adapter.GetBluetoothLeAdvertiser(); le != nil {
		a.advertiser = &androidAdvertiser{android: a, le: le}
	}
	return a
}

func (a *Android) prefix() string {
	return fmt.Sprintf("%s Android", shortHash(a.hardwareUUID))
}

// HardwareUUID returns the simulated Bluetooth address
func (a *Android) HardwareUUID() string {
	return a.hardwareUUID
}

// Adapter exposes the emulated BluetoothAdapter
func (a *Android) Adapter() *kotlin.BluetoothAdapter {
	return a.adapter
}

// PeripheralModeSupported reports BluetoothAdapter.isMultipleAdvertisementSupported
func (a *Android) PeripheralModeSupported() bool {
	return a.adapter.IsMultipleAdvertisementSupported()
}

// Advertiser returns nil when the adapter has no LE advertiser
func (a *Android) Advertiser() peripheral.Advertiser {
	if a.advertiser == nil {
		return nil
	}
	return a.advertiser
}

// SetName sets the adapter name used in the advertisement
func (a *Android) SetName(name string) error {
	if !a.adapter.SetName(name) {
		return fmt.Errorf("%w: %q", ErrSetNameFailed, name)
	}
	return nil
}

// AddService opens the GATT server on first use and registers service with it
func (a *Android) AddService(service *peripheral.Service) error {
	server := a.openGattServer()
	if !server.AddService(toKotlinService(service)) {
		return fmt.Errorf("%w: %s", ErrAddServiceFailed, service.UUID)
	}
	return nil
}

func (a *Android) openGattServer() *kotlin.BluetoothGattServer {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gattServer == nil {
		a.gattServer = a.manager.OpenGattServer(&androidGattServerCallback{android: a})
	}
	return a.gattServer
}

// SendResponse answers a read request delivered as EventReadRequested
func (a *Android) SendResponse(device peripheral.Device, requestID int, status peripheral.Status, offset int, value []byte) bool {
	a.mu.RLock()
	server := a.gattServer
	d, ok := a.centrals[device.Address]
	a.mu.RUnlock()

	if server == nil {
		return false
	}
	if !ok {
		d = a.adapter.GetRemoteDevice(device.Address)
	}
	return server.SendResponse(d, requestID, int(status), offset, value)
}

// SetEventHandler registers the function events are delivered to
func (a *Android) SetEventHandler(handler func(peripheral.Event)) {
	if handler == nil {
		handler = func(peripheral.Event) {}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = handler
}

// Close stops advertising and closes the GATT server, disconnecting centrals
func (a *Android) Close() {
	if a.advertiser != nil {
		a.advertiser.le.StopAdvertising()
	}

	a.mu.Lock()
	server := a.gattServer
	a.gattServer = nil
	a.mu.Unlock()

	if server != nil {
		server.Close()
	}
	logger.Debug(a.prefix(), "Closed")
}

func (a *Android) emit(ev peripheral.Event) {
	a.mu.RLock()
	handler := a.handler
	a.mu.RUnlock()
	handler(ev)
}

func toKotlinService(s *peripheral.Service) *kotlin.BluetoothGattService {
	out := &kotlin.BluetoothGattService{
		UUID: s.UUID.String(),
		Type: kotlin.SERVICE_TYPE_PRIMARY,
	}
	if s.Type == peripheral.ServiceTypeSecondary {
		out.Type = kotlin.SERVICE_TYPE_SECONDARY
	}
	for _, c := range s.Characteristics {
		kc := &kotlin.BluetoothGattCharacteristic{
			UUID:        c.UUID.String(),
			Properties:  c.Properties,
			Permissions: c.Permissions,
		}
		kc.SetValue(c.Value())
		out.Characteristics = append(out.Characteristics, kc)
	}
	return out
}

func shortHash(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8]
}
