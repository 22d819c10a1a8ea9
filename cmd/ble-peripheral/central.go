package main

import (
	"context"
	"time"

	"github.com/user/ble-peripheral/kotlin"
	"github.com/user/ble-peripheral/logger"
	"github.com/user/ble-peripheral/peripheral"
	"github.com/user/ble-peripheral/wire"
)

// simCentral is an Android phone in the central role that repeatedly scans
// for the peripheral, connects, reads the characteristic and disconnects
type simCentral struct {
	adapter   *kotlin.BluetoothAdapter
	readEvery time.Duration
	prefix    string

	states     chan int
	discovered chan int
	reads      chan readResult
}

type readResult struct {
	value  []byte
	status int
}

func newSimCentral(w *wire.Wire, readEvery time.Duration) *simCentral {
	return &simCentral{
		adapter:    kotlin.NewBluetoothManager(w, kotlin.DefaultFeatures()).GetAdapter(),
		readEvery:  readEvery,
		prefix:     w.HardwareUUID()[:8] + " Central",
		states:     make(chan int, 4),
		discovered: make(chan int, 1),
		reads:      make(chan readResult, 1),
	}
}

func (c *simCentral) run(ctx context.Context) {
	for {
		if err := c.readOnce(ctx); err != nil {
			logger.Debug(c.prefix, "Read cycle ended: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.readEvery):
		}
	}
}

func (c *simCentral) readOnce(ctx context.Context) error {
	drain(c.states)
	drain(c.discovered)
	drain(c.reads)

	device, err := c.scan(ctx)
	if err != nil {
		return err
	}

	gatt := device.ConnectGatt(c)
	defer gatt.Close()

	if state, err := wait(ctx, c.states); err != nil {
		return err
	} else if state != kotlin.STATE_CONNECTED {
		return errConnectFailed
	}

	if !gatt.DiscoverServices() {
		return errBusy
	}
	if status, err := wait(ctx, c.discovered); err != nil {
		return err
	} else if status != kotlin.GATT_SUCCESS {
		return errDiscoveryFailed
	}

	service := gatt.GetService(peripheral.ServiceUUID.String())
	if service == nil {
		return errNoService
	}
	char := service.GetCharacteristic(peripheral.CharacteristicUUID.String())
	if char == nil || !gatt.ReadCharacteristic(char) {
		return errNoService
	}

	r, err := wait(ctx, c.reads)
	if err != nil {
		return err
	}
	if r.status == kotlin.GATT_SUCCESS {
		logger.Info(c.prefix, "📖 Read %q from %s", r.value, shortHash(device.Address))
	} else {
		logger.Warn(c.prefix, "⚠️  Read failed with status %d", r.status)
	}

	gatt.Disconnect()
	wait(ctx, c.states)
	return nil
}

// scan returns the first device advertising the peripheral's service
func (c *simCentral) scan(ctx context.Context) (*kotlin.BluetoothDevice, error) {
	found := make(chan *kotlin.BluetoothDevice, 1)
	scanner := c.adapter.GetBluetoothLeScanner()
	scanner.StartScan(scanFunc(func(result *kotlin.ScanResult) {
		for _, u := range result.ServiceUUIDs {
			if u == peripheral.ServiceUUID.String() {
				select {
				case found <- result.Device:
				default:
				}
			}
		}
	}))
	defer scanner.StopScan()

	select {
	case d := <-found:
		return d, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *simCentral) OnConnectionStateChange(gatt *kotlin.BluetoothGatt, status int, newState int) {
	offer(c.states, newState)
}

func (c *simCentral) OnServicesDiscovered(gatt *kotlin.BluetoothGatt, status int) {
	offer(c.discovered, status)
}

func (c *simCentral) OnCharacteristicRead(gatt *kotlin.BluetoothGatt, char *kotlin.BluetoothGattCharacteristic, value []byte, status int) {
	offer(c.reads, readResult{value: value, status: status})
}

type scanFunc func(result *kotlin.ScanResult)

func (f scanFunc) OnScanResult(callbackType int, result *kotlin.ScanResult) { f(result) }

func wait[T any](ctx context.Context, c chan T) (T, error) {
	select {
	case v := <-c:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-time.After(10 * time.Second):
		var zero T
		return zero, errTimeout
	}
}

func shortHash(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8]
}

func drain[T any](c chan T) {
	for {
		select {
		case <-c:
		default:
			return
		}
	}
}

// offer never blocks the callback goroutine; a full channel means the
// cycle waiting on it has already given up
func offer[T any](c chan T, v T) {
	select {
	case c <- v:
	default:
	}
}
