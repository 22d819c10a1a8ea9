package kotlin

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/ble-peripheral/logger"
	"github.com/user/ble-peripheral/wire"
	"github.com/user/ble-peripheral/wire/advertising"
)

// AdvertiseCallback matches Android's AdvertiseCallback interface
type AdvertiseCallback interface {
	OnStartSuccess(settingsInEffect *AdvertiseSettings)
	OnStartFailure(errorCode int)
}

// AdvertiseSettings matches Android's AdvertiseSettings class
type AdvertiseSettings struct {
	AdvertiseMode int // ADVERTISE_MODE_LOW_POWER, BALANCED, LOW_LATENCY
	Connectable   bool
	Timeout       int // milliseconds, 0 = no timeout
	TxPowerLevel  int // ADVERTISE_TX_POWER_ULTRA_LOW, LOW, MEDIUM, HIGH
}

// AdvertiseSettings modes
const (
	ADVERTISE_MODE_LOW_POWER   = 0 // 1000ms interval
	ADVERTISE_MODE_BALANCED    = 1 // 250ms interval
	ADVERTISE_MODE_LOW_LATENCY = 2 // 100ms interval
)

// AdvertiseSettings TX power levels
const (
	ADVERTISE_TX_POWER_ULTRA_LOW = 0 // -21 dBm
	ADVERTISE_TX_POWER_LOW       = 1 // -15 dBm
	ADVERTISE_TX_POWER_MEDIUM    = 2 // -7 dBm
	ADVERTISE_TX_POWER_HIGH      = 3 // 1 dBm
)

// AdvertiseCallback error codes
const (
	ADVERTISE_FAILED_DATA_TOO_LARGE       = 1
	ADVERTISE_FAILED_TOO_MANY_ADVERTISERS = 2
	ADVERTISE_FAILED_ALREADY_STARTED      = 3
	ADVERTISE_FAILED_INTERNAL_ERROR       = 4
	ADVERTISE_FAILED_FEATURE_UNSUPPORTED  = 5
)

// startCallbackDelay matches the latency of Android's binder callback
const startCallbackDelay = 10 * time.Millisecond

// AdvertiseData matches Android's AdvertiseData class
type AdvertiseData struct {
	ServiceUUIDs        []string
	IncludeTxPowerLevel bool
	IncludeDeviceName   bool
}

// BluetoothLeAdvertiser matches Android's BluetoothLeAdvertiser class
type BluetoothLeAdvertiser struct {
	adapter *BluetoothAdapter
	wire    *wire.Wire

	mu              sync.Mutex
	isAdvertising   bool
	stopAdvertising chan struct{}
	callback        AdvertiseCallback
	settings        *AdvertiseSettings
	gattServer      *BluetoothGattServer
}

// NewBluetoothLeAdvertiser creates an advertiser for adapter
func NewBluetoothLeAdvertiser(adapter *BluetoothAdapter) *BluetoothLeAdvertiser {
	return &BluetoothLeAdvertiser{
		adapter: adapter,
		wire:    adapter.wire,
	}
}

// SetGattServer links the advertiser with a GATT server so the published
// GATT table is refreshed whenever advertising starts
func (a *BluetoothLeAdvertiser) SetGattServer(server *BluetoothGattServer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gattServer = server
}

// StartAdvertising starts advertising with the specified settings and data.
// The result is delivered asynchronously to callback.
// Matches: bluetoothLeAdvertiser.startAdvertising(settings, advertiseData, scanResponse, callback)
func (a *BluetoothLeAdvertiser) StartAdvertising(
	settings *AdvertiseSettings,
	advertiseData *AdvertiseData,
	scanResponse *AdvertiseData,
	callback AdvertiseCallback,
) {
	a.mu.Lock()
	defer a.mu.Unlock()

	fail := func(code int) {
		logger.Debug(a.adapter.prefix(), "❌ startAdvertising failed with code %d", code)
		if callback != nil {
			go callback.OnStartFailure(code)
		}
	}

	if a.isAdvertising {
		fail(ADVERTISE_FAILED_ALREADY_STARTED)
		return
	}
	if !a.adapter.IsEnabled() {
		fail(ADVERTISE_FAILED_INTERNAL_ERROR)
		return
	}

	if settings == nil {
		settings = &AdvertiseSettings{
			AdvertiseMode: ADVERTISE_MODE_LOW_POWER,
			Connectable:   true,
			TxPowerLevel:  ADVERTISE_TX_POWER_MEDIUM,
		}
	}
	if advertiseData == nil {
		advertiseData = &AdvertiseData{}
	}

	wireAdvData, err := a.buildAdvertisingData(settings, advertiseData, scanResponse)
	if err != nil {
		logger.Warn(a.adapter.prefix(), "⚠️  Invalid advertising data: %v", err)
		if errors.Is(err, advertising.ErrDataTooLarge) {
			fail(ADVERTISE_FAILED_DATA_TOO_LARGE)
		} else {
			fail(ADVERTISE_FAILED_INTERNAL_ERROR)
		}
		return
	}

	if a.gattServer != nil {
		if err := a.wire.WriteGATTTable(a.gattServer.buildGATTTable()); err != nil {
			logger.Trace(a.adapter.prefix(), "⚠️  Failed to write GATT table: %v", err)
		}
	}

	if err := a.wire.WriteAdvertisingData(wireAdvData); err != nil {
		logger.Warn(a.adapter.prefix(), "⚠️  Failed to publish advertisement: %v", err)
		fail(ADVERTISE_FAILED_INTERNAL_ERROR)
		return
	}

	a.callback = callback
	a.settings = settings
	a.isAdvertising = true
	stop := make(chan struct{})
	a.stopAdvertising = stop

	logger.Info(a.adapter.prefix(), "📡 Started Advertising")

	if settings.Timeout > 0 {
		go func() {
			select {
			case <-time.After(time.Duration(settings.Timeout) * time.Millisecond):
				a.StopAdvertising()
			case <-stop:
			}
		}()
	}

	if callback != nil {
		go func() {
			time.Sleep(startCallbackDelay)
			callback.OnStartSuccess(settings)
		}()
	}
}

// buildAdvertisingData encodes the advertisement and scan response, each of
// which must fit the legacy 31-byte payload
func (a *BluetoothLeAdvertiser) buildAdvertisingData(settings *AdvertiseSettings, advertiseData, scanResponse *AdvertiseData) (*wire.AdvertisingData, error) {
	out := &wire.AdvertisingData{
		IsConnectable: settings.Connectable,
	}

	encode := func(d *AdvertiseData) ([]byte, error) {
		uuids := make([]uuid.UUID, 0, len(d.ServiceUUIDs))
		for _, s := range d.ServiceUUIDs {
			u, err := uuid.Parse(s)
			if err != nil {
				return nil, err
			}
			uuids = append(uuids, u)
			out.ServiceUUIDs = append(out.ServiceUUIDs, u.String())
		}

		name := ""
		if d.IncludeDeviceName {
			name = a.adapter.GetName()
			out.DeviceName = name
		}

		var txPower *int8
		if d.IncludeTxPowerLevel {
			dbm := txPowerLevelToDbm(settings.TxPowerLevel)
			p := int8(dbm)
			txPower = &p
			out.TxPowerLevel = &dbm
		}

		return advertising.BuildPayload(name, uuids, txPower)
	}

	payload, err := encode(advertiseData)
	if err != nil {
		return nil, err
	}
	out.Payload = payload

	if scanResponse != nil {
		if _, err := encode(scanResponse); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// StopAdvertising stops advertising. Android gives no callback for it.
// Matches: bluetoothLeAdvertiser.stopAdvertising(callback)
func (a *BluetoothLeAdvertiser) StopAdvertising() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isAdvertising {
		return
	}

	if a.stopAdvertising != nil {
		close(a.stopAdvertising)
		a.stopAdvertising = nil
	}
	a.isAdvertising = false
	a.wire.ClearAdvertisingData()

	logger.Info(a.adapter.prefix(), "📡 Stopped Advertising")
}

// IsAdvertising returns whether currently advertising
func (a *BluetoothLeAdvertiser) IsAdvertising() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isAdvertising
}

// txPowerLevelToDbm converts Android TX power level to dBm
func txPowerLevelToDbm(level int) int {
	switch level {
	case ADVERTISE_TX_POWER_ULTRA_LOW:
		return -21
	case ADVERTISE_TX_POWER_LOW:
		return -15
	case ADVERTISE_TX_POWER_MEDIUM:
		return -7
	case ADVERTISE_TX_POWER_HIGH:
		return 1
	default:
		return -7
	}
}
