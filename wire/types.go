package wire

// AdvertisingData is what a device broadcasts while advertising. Payload
// holds the encoded AD structures as they would appear on air.
type AdvertisingData struct {
	DeviceName    string   `json:"device_name,omitempty"`
	ServiceUUIDs  []string `json:"service_uuids,omitempty"`
	TxPowerLevel  *int     `json:"tx_power_level,omitempty"`
	IsConnectable bool     `json:"is_connectable"`
	Payload       []byte   `json:"payload,omitempty"`
}

// Advertisement is a single discovery result
type Advertisement struct {
	HardwareUUID string
	Data         AdvertisingData
	RSSI         int
}

// GATTTable represents a device's complete GATT database
type GATTTable struct {
	Services []GATTService `json:"services"`
}

// GATTService represents a BLE service
type GATTService struct {
	UUID            string               `json:"uuid"`
	Type            string               `json:"type"` // "primary" or "secondary"
	Characteristics []GATTCharacteristic `json:"characteristics"`
}

// GATTCharacteristic represents a BLE characteristic
type GATTCharacteristic struct {
	UUID       string   `json:"uuid"`
	Properties []string `json:"properties"`
}

// GATT message types
const (
	MessageTypeRequest  = "gatt_request"
	MessageTypeResponse = "gatt_response"
)

// GATT operations
const (
	OperationRead = "read"
)

// GATT response statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// GATTMessage represents a GATT operation over the wire
type GATTMessage struct {
	Type               string `json:"type"`                 // "gatt_request", "gatt_response"
	RequestID          string `json:"request_id,omitempty"` // For request/response matching
	Operation          string `json:"operation,omitempty"`  // "read"
	ServiceUUID        string `json:"service_uuid"`
	CharacteristicUUID string `json:"characteristic_uuid"`
	Offset             int    `json:"offset,omitempty"`
	Data               []byte `json:"data,omitempty"`
	Status             string `json:"status,omitempty"`     // "success", "error"
	ErrorCode          uint8  `json:"error_code,omitempty"` // ATT error code when Status is "error"
	SenderUUID         string `json:"sender_uuid,omitempty"`
}

func (m *GATTMessage) clone() *GATTMessage {
	c := *m
	if m.Data != nil {
		c.Data = append([]byte(nil), m.Data...)
	}
	return &c
}
