package kotlin

import (
	"strings"
	"sync"
)

// BluetoothGattService matches Android's BluetoothGattService class
type BluetoothGattService struct {
	UUID            string
	Type            int // SERVICE_TYPE_PRIMARY or SERVICE_TYPE_SECONDARY
	Characteristics []*BluetoothGattCharacteristic
}

// GetCharacteristic finds a characteristic by UUID (case-insensitive)
func (s *BluetoothGattService) GetCharacteristic(charUUID string) *BluetoothGattCharacteristic {
	for _, c := range s.Characteristics {
		if strings.EqualFold(c.UUID, charUUID) {
			return c
		}
	}
	return nil
}

// BluetoothGattCharacteristic matches Android's BluetoothGattCharacteristic class.
// Value is guarded so a remote read and a local update never interleave.
type BluetoothGattCharacteristic struct {
	UUID        string
	Properties  int
	Permissions int
	Service     *BluetoothGattService

	mu    sync.RWMutex
	value []byte
}

// GetValue returns a copy of the cached value
func (c *BluetoothGattCharacteristic) GetValue() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]byte(nil), c.value...)
}

// SetValue replaces the cached value
func (c *BluetoothGattCharacteristic) SetValue(value []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = append([]byte(nil), value...)
	return true
}

// propertiesToStrings converts bitmask to string array
func propertiesToStrings(props int) []string {
	var result []string
	if props&PROPERTY_READ != 0 {
		result = append(result, "read")
	}
	if props&PROPERTY_WRITE != 0 {
		result = append(result, "write")
	}
	if props&PROPERTY_WRITE_NO_RESPONSE != 0 {
		result = append(result, "write_without_response")
	}
	if props&PROPERTY_NOTIFY != 0 {
		result = append(result, "notify")
	}
	if props&PROPERTY_INDICATE != 0 {
		result = append(result, "indicate")
	}
	return result
}

// stringsToProperties is the inverse of propertiesToStrings
func stringsToProperties(names []string) int {
	props := 0
	for _, name := range names {
		switch name {
		case "read":
			props |= PROPERTY_READ
		case "write":
			props |= PROPERTY_WRITE
		case "write_without_response":
			props |= PROPERTY_WRITE_NO_RESPONSE
		case "notify":
			props |= PROPERTY_NOTIFY
		case "indicate":
			props |= PROPERTY_INDICATE
		}
	}
	return props
}
