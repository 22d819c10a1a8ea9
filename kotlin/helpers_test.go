package kotlin

import (
	"testing"

	"github.com/user/ble-peripheral/util"
	"github.com/user/ble-peripheral/wire"
)

const (
	testServiceUUID = "0000180c-0000-1000-8000-00805f9b34fb"
	testCharUUID    = "00002a56-0000-1000-8000-00805f9b34fb"
)

// setupTestEnv points the data directory at a fresh temp dir and returns a medium
func setupTestEnv(t *testing.T) *wire.Medium {
	t.Helper()
	t.Setenv(util.DataDirEnv, t.TempDir())
	return wire.NewMedium()
}

// newTestManager starts a wire on medium and wraps it in a manager
func newTestManager(t *testing.T, medium *wire.Medium, hardwareUUID string, features AdapterFeatures) *BluetoothManager {
	t.Helper()
	w := wire.NewWire(medium, hardwareUUID)
	if err := w.Start(); err != nil {
		t.Fatalf("Failed to start wire: %v", err)
	}
	t.Cleanup(w.Stop)
	return NewBluetoothManager(w, features)
}

// testService builds the one-characteristic read service
func testService() *BluetoothGattService {
	return &BluetoothGattService{
		UUID: testServiceUUID,
		Type: SERVICE_TYPE_PRIMARY,
		Characteristics: []*BluetoothGattCharacteristic{
			{
				UUID:        testCharUUID,
				Properties:  PROPERTY_READ,
				Permissions: PERMISSION_READ,
			},
		},
	}
}

// testGattServerCallback is a test implementation of BluetoothGattServerCallback
type testGattServerCallback struct {
	onConnectionStateChange     func(device *BluetoothDevice, status int, newState int)
	onCharacteristicReadRequest func(device *BluetoothDevice, requestId int, offset int, char *BluetoothGattCharacteristic)
}

func (c *testGattServerCallback) OnConnectionStateChange(device *BluetoothDevice, status int, newState int) {
	if c.onConnectionStateChange != nil {
		c.onConnectionStateChange(device, status, newState)
	}
}

func (c *testGattServerCallback) OnCharacteristicReadRequest(device *BluetoothDevice, requestId int, offset int, char *BluetoothGattCharacteristic) {
	if c.onCharacteristicReadRequest != nil {
		c.onCharacteristicReadRequest(device, requestId, offset, char)
	}
}

// testAdvertiseCallback is a test implementation of AdvertiseCallback
type testAdvertiseCallback struct {
	onStartSuccess func(settings *AdvertiseSettings)
	onStartFailure func(errorCode int)
}

func (c *testAdvertiseCallback) OnStartSuccess(settings *AdvertiseSettings) {
	if c.onStartSuccess != nil {
		c.onStartSuccess(settings)
	}
}

func (c *testAdvertiseCallback) OnStartFailure(errorCode int) {
	if c.onStartFailure != nil {
		c.onStartFailure(errorCode)
	}
}

// channelAdvertiseCallback reports start results on channels
func channelAdvertiseCallback() (*testAdvertiseCallback, chan bool, chan int) {
	success := make(chan bool, 4)
	failure := make(chan int, 4)
	return &testAdvertiseCallback{
		onStartSuccess: func(*AdvertiseSettings) { success <- true },
		onStartFailure: func(code int) { failure <- code },
	}, success, failure
}

// testGattCallback is a test implementation of BluetoothGattCallback
type testGattCallback struct {
	onConnectionStateChange func(gatt *BluetoothGatt, status int, newState int)
	onServicesDiscovered    func(gatt *BluetoothGatt, status int)
	onCharacteristicRead    func(gatt *BluetoothGatt, char *BluetoothGattCharacteristic, value []byte, status int)
}

func (c *testGattCallback) OnConnectionStateChange(gatt *BluetoothGatt, status int, newState int) {
	if c.onConnectionStateChange != nil {
		c.onConnectionStateChange(gatt, status, newState)
	}
}

func (c *testGattCallback) OnServicesDiscovered(gatt *BluetoothGatt, status int) {
	if c.onServicesDiscovered != nil {
		c.onServicesDiscovered(gatt, status)
	}
}

func (c *testGattCallback) OnCharacteristicRead(gatt *BluetoothGatt, char *BluetoothGattCharacteristic, value []byte, status int) {
	if c.onCharacteristicRead != nil {
		c.onCharacteristicRead(gatt, char, value, status)
	}
}

// testScanCallback is a test implementation of ScanCallback
type testScanCallback struct {
	onScanResult func(callbackType int, result *ScanResult)
}

func (c *testScanCallback) OnScanResult(callbackType int, result *ScanResult) {
	if c.onScanResult != nil {
		c.onScanResult(callbackType, result)
	}
}
