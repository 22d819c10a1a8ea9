package kotlin

import (
	"fmt"
	"sync"

	"github.com/user/ble-peripheral/logger"
	"github.com/user/ble-peripheral/wire"
)

// AdapterFeatures describes what the simulated controller supports
type AdapterFeatures struct {
	// MultipleAdvertisement is reported by IsMultipleAdvertisementSupported.
	// Without it the adapter has no BluetoothLeAdvertiser.
	MultipleAdvertisement bool
}

// DefaultFeatures returns a peripheral-capable controller
func DefaultFeatures() AdapterFeatures {
	return AdapterFeatures{MultipleAdvertisement: true}
}

// BluetoothManager matches Android's BluetoothManager system service
type BluetoothManager struct {
	Adapter *BluetoothAdapter
}

// NewBluetoothManager creates a manager whose adapter owns w
func NewBluetoothManager(w *wire.Wire, features AdapterFeatures) *BluetoothManager {
	return &BluetoothManager{
		Adapter: NewBluetoothAdapter(w, features),
	}
}

// GetAdapter matches: bluetoothManager.getAdapter()
func (m *BluetoothManager) GetAdapter() *BluetoothAdapter {
	return m.Adapter
}

// OpenGattServer matches: bluetoothManager.openGattServer(context, callback).
// Only one server is open at a time; opening again replaces it.
func (m *BluetoothManager) OpenGattServer(callback BluetoothGattServerCallback) *BluetoothGattServer {
	a := m.Adapter
	server := newBluetoothGattServer(a, callback)

	a.mu.Lock()
	a.gattServer = server
	advertiser := a.advertiser
	a.mu.Unlock()

	if advertiser != nil {
		advertiser.SetGattServer(server)
	}
	return server
}

// BluetoothAdapter matches Android's BluetoothAdapter class. It routes link
// events from its wire to the GATT server and to client connections.
type BluetoothAdapter struct {
	wire     *wire.Wire
	features AdapterFeatures

	mu         sync.RWMutex
	name       string
	enabled    bool
	advertiser *BluetoothLeAdvertiser
	scanner    *BluetoothLeScanner
	gattServer *BluetoothGattServer
	clients    map[string]*BluetoothGatt // remote address -> client connection
}

// NewBluetoothAdapter creates an enabled adapter on w
func NewBluetoothAdapter(w *wire.Wire, features AdapterFeatures) *BluetoothAdapter {
	a := &BluetoothAdapter{
		wire:     w,
		features: features,
		name:     "Android Device",
		enabled:  true,
		clients:  make(map[string]*BluetoothGatt),
	}
	a.scanner = &BluetoothLeScanner{adapter: a}
	if features.MultipleAdvertisement {
		a.advertiser = NewBluetoothLeAdvertiser(a)
	}

	w.SetConnectCallback(a.onConnect)
	w.SetDisconnectCallback(a.onDisconnect)
	w.SetGATTMessageHandler(a.onGATTMessage)
	return a
}

func (a *BluetoothAdapter) prefix() string {
	return fmt.Sprintf("%s Android", shortHash(a.wire.HardwareUUID()))
}

// GetAddress returns the adapter's hardware address
func (a *BluetoothAdapter) GetAddress() string {
	return a.wire.HardwareUUID()
}

// IsEnabled matches: bluetoothAdapter.isEnabled()
func (a *BluetoothAdapter) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Disable turns the radio off: advertising stops and links drop
func (a *BluetoothAdapter) Disable() bool {
	a.mu.Lock()
	a.enabled = false
	advertiser := a.advertiser
	a.mu.Unlock()

	if advertiser != nil {
		advertiser.StopAdvertising()
	}
	for _, peer := range a.wire.ConnectedPeers() {
		a.wire.Disconnect(peer)
	}
	logger.Info(a.prefix(), "📴 Bluetooth disabled")
	return true
}

// Enable turns the radio back on
func (a *BluetoothAdapter) Enable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = true
	return true
}

// SetName matches: bluetoothAdapter.setName(name). It fails while the
// adapter is disabled or for an empty name.
func (a *BluetoothAdapter) SetName(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.enabled || name == "" {
		return false
	}
	a.name = name
	return true
}

// GetName matches: bluetoothAdapter.getName()
func (a *BluetoothAdapter) GetName() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.name
}

// IsMultipleAdvertisementSupported matches: bluetoothAdapter.isMultipleAdvertisementSupported()
func (a *BluetoothAdapter) IsMultipleAdvertisementSupported() bool {
	return a.features.MultipleAdvertisement
}

// GetBluetoothLeAdvertiser returns nil when the controller cannot advertise
func (a *BluetoothAdapter) GetBluetoothLeAdvertiser() *BluetoothLeAdvertiser {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.advertiser
}

// GetBluetoothLeScanner matches: bluetoothAdapter.getBluetoothLeScanner()
func (a *BluetoothAdapter) GetBluetoothLeScanner() *BluetoothLeScanner {
	return a.scanner
}

// GetRemoteDevice never returns nil, even for unknown addresses.
// Connecting to an address that is not advertising fails later.
func (a *BluetoothAdapter) GetRemoteDevice(address string) *BluetoothDevice {
	return &BluetoothDevice{
		Address: address,
		adapter: a,
	}
}

func (a *BluetoothAdapter) registerClient(g *BluetoothGatt) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clients[g.device.Address] = g
}

func (a *BluetoothAdapter) unregisterClient(g *BluetoothGatt) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.clients[g.device.Address] == g {
		delete(a.clients, g.device.Address)
	}
}

func (a *BluetoothAdapter) server() *BluetoothGattServer {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.gattServer
}

func (a *BluetoothAdapter) client(address string) *BluetoothGatt {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.clients[address]
}

func (a *BluetoothAdapter) onConnect(peerUUID string, role wire.ConnectionRole) {
	switch role {
	case wire.RolePeripheral:
		if s := a.server(); s != nil {
			s.onCentralConnected(peerUUID)
		}
	case wire.RoleCentral:
		if g := a.client(peerUUID); g != nil {
			g.onConnected()
		}
	}
}

func (a *BluetoothAdapter) onDisconnect(peerUUID string) {
	if s := a.server(); s != nil {
		s.onCentralDisconnected(peerUUID)
	}
	if g := a.client(peerUUID); g != nil {
		g.onDisconnected()
	}
}

func (a *BluetoothAdapter) onGATTMessage(peerUUID string, msg *wire.GATTMessage) {
	s := a.server()
	if s == nil {
		logger.Trace(a.prefix(), "⚠️  GATT request from %s with no server open", shortHash(peerUUID))
		return
	}
	s.handleCharacteristicMessage(peerUUID, msg)
}

func shortHash(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8]
}
