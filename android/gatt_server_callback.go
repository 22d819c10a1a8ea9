package android

import (
	"github.com/google/uuid"
	"github.com/user/ble-peripheral/kotlin"
	"github.com/user/ble-peripheral/logger"
	"github.com/user/ble-peripheral/peripheral"
)

// ============================================================================
// BluetoothGattServerCallback Implementation (Peripheral role - others connect to us)
// ============================================================================

func (cb *androidGattServerCallback) OnConnectionStateChange(device *kotlin.BluetoothDevice, status int, newState int) {
	a := cb.android

	ev := peripheral.Event{
		Kind:   peripheral.EventConnectionChanged,
		Device: peripheral.Device{Address: device.Address, Name: device.Name},
		Status: peripheral.Status(status),
	}

	switch newState {
	case kotlin.STATE_CONNECTED:
		logger.Debug(a.prefix(), "📱 Central %s connected to us (peripheral mode)", shortHash(device.Address))
		a.mu.Lock()
		a.centrals[device.Address] = device
		a.mu.Unlock()
		ev.LinkState = peripheral.LinkConnected

	case kotlin.STATE_DISCONNECTED:
		logger.Debug(a.prefix(), "📱 Central %s disconnected from us", shortHash(device.Address))
		a.mu.Lock()
		delete(a.centrals, device.Address)
		a.mu.Unlock()
		ev.LinkState = peripheral.LinkDisconnected

	default:
		// Connecting and disconnecting are transient; the peripheral only
		// tracks settled states
		return
	}

	a.emit(ev)
}

func (cb *androidGattServerCallback) OnCharacteristicReadRequest(device *kotlin.BluetoothDevice, requestId int, offset int, characteristic *kotlin.BluetoothGattCharacteristic) {
	a := cb.android

	logger.Trace(a.prefix(), "📖 Read request from %s for char %s", shortHash(device.Address), shortHash(characteristic.UUID))

	charUUID, err := uuid.Parse(characteristic.UUID)
	if err != nil {
		logger.Warn(a.prefix(), "⚠️  Read request for malformed characteristic %q", characteristic.UUID)
		a.mu.RLock()
		server := a.gattServer
		a.mu.RUnlock()
		if server != nil {
			server.SendResponse(device, requestId, kotlin.GATT_FAILURE, offset, nil)
		}
		return
	}

	a.emit(peripheral.Event{
		Kind:               peripheral.EventReadRequested,
		Device:             peripheral.Device{Address: device.Address, Name: device.Name},
		RequestID:          requestId,
		Offset:             offset,
		CharacteristicUUID: charUUID,
	})
}
