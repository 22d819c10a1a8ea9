package peripheral

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// GATT profile served by the peripheral
var (
	ServiceUUID        = uuid.MustParse("0000180c-0000-1000-8000-00805f9b34fb")
	CharacteristicUUID = uuid.MustParse("00002a56-0000-1000-8000-00805f9b34fb")
)

const (
	// AdvertisingName is the local name put in the advertisement
	AdvertisingName = "MyDevice"

	// MaxCharacteristicLength bounds the characteristic value in bytes
	MaxCharacteristicLength = 20
)

var (
	// ErrUnsupportedCapability is returned by New when the host cannot act
	// as an advertising peripheral.
	ErrUnsupportedCapability = errors.New("peripheral mode not supported")

	// ErrValueTooLong is returned when a characteristic value would exceed its
	// maximum length.
	ErrValueTooLong = errors.New("characteristic value too long")
)

// State is the lifecycle state of the peripheral
type State int

const (
	StateIdle State = iota
	StateAdvertising
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAdvertising:
		return "advertising"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// LinkState is the connection state the host reports for a central
type LinkState int

const (
	LinkDisconnected LinkState = 0
	LinkConnected    LinkState = 2
)

// Status is a GATT status code. Values match the ATT error codes.
type Status int

const (
	StatusSuccess       Status = 0
	StatusInvalidOffset Status = 7
	StatusFailure       Status = 257
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusInvalidOffset:
		return "invalid offset"
	case StatusFailure:
		return "failure"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Advertise failure codes reported through Callback.OnAdvertisingFailed
const (
	AdvertiseFailedDataTooLarge       = 1
	AdvertiseFailedTooManyAdvertisers = 2
	AdvertiseFailedAlreadyStarted     = 3
	AdvertiseFailedInternalError      = 4
	AdvertiseFailedFeatureUnsupported = 5
)

// AdvertiseErrorString describes an advertise failure code
func AdvertiseErrorString(code int) string {
	switch code {
	case AdvertiseFailedDataTooLarge:
		return "data too large"
	case AdvertiseFailedTooManyAdvertisers:
		return "too many advertisers"
	case AdvertiseFailedAlreadyStarted:
		return "already started"
	case AdvertiseFailedInternalError:
		return "internal error"
	case AdvertiseFailedFeatureUnsupported:
		return "feature unsupported"
	default:
		return fmt.Sprintf("unknown error %d", code)
	}
}

// AdvertiseMode trades advertising latency against power
type AdvertiseMode int

const (
	AdvertiseModeLowPower AdvertiseMode = iota
	AdvertiseModeBalanced
	AdvertiseModeLowLatency
)

// TxPower is the advertising transmit power level
type TxPower int

const (
	TxPowerUltraLow TxPower = iota
	TxPowerLow
	TxPowerMedium
	TxPowerHigh
)

// AdvertiseSettings controls how the host advertises
type AdvertiseSettings struct {
	Mode        AdvertiseMode
	TxPower     TxPower
	Connectable bool
	TimeoutMs   int // 0 = advertise until stopped
}

// AdvertiseData is the content of the advertisement
type AdvertiseData struct {
	IncludeDeviceName bool
	ServiceUUIDs      []uuid.UUID
}

// Device identifies a remote central
type Device struct {
	Address string
	Name    string
}

// Service type
const (
	ServiceTypePrimary   = 0
	ServiceTypeSecondary = 1
)

// Characteristic properties and permissions
const (
	PropertyRead   = 0x02
	PermissionRead = 0x01
)

// Service is the GATT service registered with the host
type Service struct {
	UUID            uuid.UUID
	Type            int
	Characteristics []*Characteristic
}

// EventKind enumerates host-delivered events
type EventKind int

const (
	EventConnectionChanged EventKind = iota
	EventReadRequested
	EventAdvertiseStarted
	EventAdvertiseFailed
)

func (k EventKind) String() string {
	switch k {
	case EventConnectionChanged:
		return "ConnectionChanged"
	case EventReadRequested:
		return "ReadRequested"
	case EventAdvertiseStarted:
		return "AdvertiseStarted"
	case EventAdvertiseFailed:
		return "AdvertiseFailed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is delivered by the host into Manager.HandleEvent.
// Fields not used by Kind are left zero.
type Event struct {
	Kind EventKind

	Device Device

	// ConnectionChanged
	Status    Status
	LinkState LinkState

	// ReadRequested
	RequestID          int
	Offset             int
	CharacteristicUUID uuid.UUID

	// AdvertiseFailed
	ErrorCode int
}

// Callback receives lifecycle notifications from the Manager
type Callback interface {
	OnAdvertisingStarted()
	OnAdvertisingFailed(errorCode int)
	OnAdvertisingStopped()
	OnCentralConnected(device Device)
	OnCentralDisconnected(device Device)
}

// Advertiser starts and stops advertising. Results of StartAdvertising arrive
// later as EventAdvertiseStarted or EventAdvertiseFailed.
type Advertiser interface {
	StartAdvertising(settings AdvertiseSettings, data AdvertiseData)
	StopAdvertising()
}

// Host is the BLE stack the peripheral runs on
type Host interface {
	// PeripheralModeSupported reports whether the host can advertise as a peripheral
	PeripheralModeSupported() bool

	// Advertiser returns nil when no advertiser is available
	Advertiser() Advertiser

	SetName(name string) error
	AddService(service *Service) error
	SendResponse(device Device, requestID int, status Status, offset int, value []byte) bool

	// SetEventHandler registers the function the host delivers events to
	SetEventHandler(handler func(Event))
}
