package android

import (
	"errors"
	"sync"

	"github.com/user/ble-peripheral/kotlin"
	"github.com/user/ble-peripheral/peripheral"
	"github.com/user/ble-peripheral/wire"
)

var (
	// ErrSetNameFailed is returned when the adapter refuses the device name
	ErrSetNameFailed = errors.New("adapter rejected device name")

	// ErrAddServiceFailed is returned when the GATT server refuses a service
	ErrAddServiceFailed = errors.New("gatt server rejected service")
)

// Android is a simulated Android phone acting as a peripheral.Host. It drives
// the kotlin framework emulation and turns its callbacks into peripheral events.
type Android struct {
	hardwareUUID string
	wire         *wire.Wire
	manager      *kotlin.BluetoothManager
	adapter      *kotlin.BluetoothAdapter
	advertiser   *androidAdvertiser // nil when the adapter has no LE advertiser

	mu         sync.RWMutex
	gattServer *kotlin.BluetoothGattServer
	handler    func(peripheral.Event)
	centrals   map[string]*kotlin.BluetoothDevice // address -> connected central
}

// androidAdvertiser adapts kotlin.BluetoothLeAdvertiser to peripheral.Advertiser
type androidAdvertiser struct {
	android *Android
	le      *kotlin.BluetoothLeAdvertiser
}

// androidGattServerCallback wraps Android to implement BluetoothGattServerCallback
type androidGattServerCallback struct {
	android *Android
}
