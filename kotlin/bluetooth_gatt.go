package kotlin

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/user/ble-peripheral/logger"
	"github.com/user/ble-peripheral/wire/att"
)

// readTimeout bounds a single characteristic read
const readTimeout = 5 * time.Second

// BluetoothGattCallback matches Android's BluetoothGattCallback (central side)
type BluetoothGattCallback interface {
	OnConnectionStateChange(gatt *BluetoothGatt, status int, newState int)
	OnServicesDiscovered(gatt *BluetoothGatt, status int)
	OnCharacteristicRead(gatt *BluetoothGatt, characteristic *BluetoothGattCharacteristic, value []byte, status int)
}

// BluetoothGatt matches Android's BluetoothGatt class: a client connection
// to a remote GATT server.
type BluetoothGatt struct {
	device   *BluetoothDevice
	adapter  *BluetoothAdapter
	callback BluetoothGattCallback

	mu        sync.Mutex
	connected bool
	busy      bool // one outstanding operation at a time, like Android
	services  []*BluetoothGattService
}

// GetDevice returns the remote device
func (g *BluetoothGatt) GetDevice() *BluetoothDevice {
	return g.device
}

// DiscoverServices reads the remote GATT table. The result arrives through
// OnServicesDiscovered. Returns false if not connected or busy.
func (g *BluetoothGatt) DiscoverServices() bool {
	if !g.begin() {
		return false
	}

	go func() {
		table, err := g.adapter.wire.DiscoverServices(g.device.Address)
		status := GATT_SUCCESS
		if err != nil {
			logger.Debug(g.adapter.prefix(), "⚠️  Service discovery on %s failed: %v", shortHash(g.device.Address), err)
			status = GATT_FAILURE
		} else {
			services := make([]*BluetoothGattService, 0, len(table.Services))
			for _, ts := range table.Services {
				svc := &BluetoothGattService{UUID: ts.UUID, Type: SERVICE_TYPE_PRIMARY}
				if ts.Type == "secondary" {
					svc.Type = SERVICE_TYPE_SECONDARY
				}
				for _, tc := range ts.Characteristics {
					svc.Characteristics = append(svc.Characteristics, &BluetoothGattCharacteristic{
						UUID:       tc.UUID,
						Properties: stringsToProperties(tc.Properties),
						Service:    svc,
					})
				}
				services = append(services, svc)
			}
			g.mu.Lock()
			g.services = services
			g.mu.Unlock()
		}
		g.end()
		g.callback.OnServicesDiscovered(g, status)
	}()
	return true
}

// GetServices returns the services found by the last discovery
func (g *BluetoothGatt) GetServices() []*BluetoothGattService {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*BluetoothGattService(nil), g.services...)
}

// GetService finds a discovered service by UUID (case-insensitive)
func (g *BluetoothGatt) GetService(serviceUUID string) *BluetoothGattService {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range g.services {
		if strings.EqualFold(s.UUID, serviceUUID) {
			return s
		}
	}
	return nil
}

// ReadCharacteristic reads a remote characteristic. The value arrives through
// OnCharacteristicRead and is cached on characteristic. Returns false if not
// connected, busy, or the characteristic is not readable.
func (g *BluetoothGatt) ReadCharacteristic(characteristic *BluetoothGattCharacteristic) bool {
	if characteristic == nil || characteristic.Service == nil || characteristic.Properties&PROPERTY_READ == 0 {
		return false
	}
	if !g.begin() {
		return false
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
		defer cancel()

		value, err := g.adapter.wire.ReadCharacteristic(ctx, g.device.Address, characteristic.Service.UUID, characteristic.UUID, 0)
		status := GATT_SUCCESS
		if err != nil {
			status = GATT_FAILURE
			if code := att.GetErrorCode(err); code != 0 {
				status = int(code)
			}
		} else {
			characteristic.SetValue(value)
		}
		g.end()
		g.callback.OnCharacteristicRead(g, characteristic, value, status)
	}()
	return true
}

// Disconnect drops the link; OnConnectionStateChange reports it
func (g *BluetoothGatt) Disconnect() {
	g.adapter.wire.Disconnect(g.device.Address)
}

// Close releases the client. No further callbacks are delivered.
func (g *BluetoothGatt) Close() {
	g.adapter.unregisterClient(g)
	g.adapter.wire.Disconnect(g.device.Address)
}

func (g *BluetoothGatt) begin() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.connected || g.busy {
		return false
	}
	g.busy = true
	return true
}

func (g *BluetoothGatt) end() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.busy = false
}

func (g *BluetoothGatt) onConnected() {
	g.mu.Lock()
	g.connected = true
	g.mu.Unlock()
	g.callback.OnConnectionStateChange(g, GATT_SUCCESS, STATE_CONNECTED)
}

func (g *BluetoothGatt) onDisconnected() {
	g.mu.Lock()
	g.connected = false
	g.services = nil
	g.mu.Unlock()
	g.callback.OnConnectionStateChange(g, GATT_SUCCESS, STATE_DISCONNECTED)
}
