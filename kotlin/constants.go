package kotlin

// BluetoothProfile connection states
const (
	STATE_DISCONNECTED  = 0
	STATE_CONNECTING    = 1
	STATE_CONNECTED     = 2
	STATE_DISCONNECTING = 3
)

// BluetoothGatt status codes
const (
	GATT_SUCCESS                  = 0
	GATT_READ_NOT_PERMITTED       = 2
	GATT_WRITE_NOT_PERMITTED      = 3
	GATT_REQUEST_NOT_SUPPORTED    = 6
	GATT_INVALID_OFFSET           = 7
	GATT_INVALID_ATTRIBUTE_LENGTH = 13
	GATT_CONNECTION_CONGESTED     = 143
	GATT_FAILURE                  = 257
)

// BluetoothGattService types
const (
	SERVICE_TYPE_PRIMARY   = 0
	SERVICE_TYPE_SECONDARY = 1
)

// BluetoothGattCharacteristic properties
const (
	PROPERTY_BROADCAST         = 0x01
	PROPERTY_READ              = 0x02
	PROPERTY_WRITE_NO_RESPONSE = 0x04
	PROPERTY_WRITE             = 0x08
	PROPERTY_NOTIFY            = 0x10
	PROPERTY_INDICATE          = 0x20
)

// BluetoothGattCharacteristic permissions
const (
	PERMISSION_READ  = 0x01
	PERMISSION_WRITE = 0x10
)

// ScanSettings callback types
const (
	CALLBACK_TYPE_ALL_MATCHES = 1
)
