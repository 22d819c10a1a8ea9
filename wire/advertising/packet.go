package advertising

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// AD Types (Advertising Data Types) - EIR/AD format
const (
	ADTypeFlags                        = 0x01 // Flags
	ADTypeIncomplete16BitServiceUUIDs  = 0x02 // Incomplete List of 16-bit Service UUIDs
	ADTypeComplete16BitServiceUUIDs    = 0x03 // Complete List of 16-bit Service UUIDs
	ADTypeIncomplete128BitServiceUUIDs = 0x06 // Incomplete List of 128-bit Service UUIDs
	ADTypeComplete128BitServiceUUIDs   = 0x07 // Complete List of 128-bit Service UUIDs
	ADTypeShortenedLocalName           = 0x08 // Shortened Local Name
	ADTypeCompleteLocalName            = 0x09 // Complete Local Name
	ADTypeTxPowerLevel                 = 0x0A // Tx Power Level
	ADTypeManufacturerSpecificData     = 0xFF // Manufacturer Specific Data
)

// Advertising Flags (used in ADTypeFlags)
const (
	FlagLELimitedDiscoverableMode = 0x01 // LE Limited Discoverable Mode
	FlagLEGeneralDiscoverableMode = 0x02 // LE General Discoverable Mode
	FlagBREDRNotSupported         = 0x04 // BR/EDR Not Supported
)

// MaxAdvertisingDataLen is the BLE 4.x legacy advertising payload limit
const MaxAdvertisingDataLen = 31

// ErrDataTooLarge is returned when encoded advertising data exceeds MaxAdvertisingDataLen
var ErrDataTooLarge = errors.New("advertising data too large")

// BaseUUID is the Bluetooth SIG base UUID. Service UUIDs that differ from it
// only in bytes 2-3 can be advertised in their 16-bit form.
var BaseUUID = uuid.MustParse("00000000-0000-1000-8000-00805f9b34fb")

// ADStructure represents a single TLV (Type-Length-Value) structure in advertising data
// Format: [Length: 1 byte] [Type: 1 byte] [Data: N bytes]
// Note: Length includes the Type byte but not itself
type ADStructure struct {
	Type byte
	Data []byte
}

// EncodeADStructures encodes multiple AD structures into a single advertising data payload
func EncodeADStructures(structures []ADStructure) ([]byte, error) {
	var buf []byte

	for _, s := range structures {
		length := 1 + len(s.Data)
		if length > 255 {
			return nil, fmt.Errorf("AD structure too long: %d bytes (max 255)", length)
		}

		buf = append(buf, byte(length))
		buf = append(buf, s.Type)
		buf = append(buf, s.Data...)
	}

	if len(buf) > MaxAdvertisingDataLen {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrDataTooLarge, len(buf), MaxAdvertisingDataLen)
	}

	return buf, nil
}

// DecodeADStructures parses advertising data into individual AD structures
func DecodeADStructures(data []byte) ([]ADStructure, error) {
	var structures []ADStructure
	offset := 0

	for offset < len(data) {
		length := int(data[offset])
		if length == 0 {
			// Padding
			break
		}

		offset++
		if offset+length > len(data) {
			return nil, fmt.Errorf("AD structure length exceeds data: length=%d, remaining=%d", length, len(data)-offset)
		}

		adType := data[offset]
		offset++
		adData := make([]byte, length-1)
		copy(adData, data[offset:offset+length-1])
		offset += length - 1

		structures = append(structures, ADStructure{
			Type: adType,
			Data: adData,
		})
	}

	return structures, nil
}

// NewFlagsAD creates a flags AD structure
func NewFlagsAD(flags byte) ADStructure {
	return ADStructure{
		Type: ADTypeFlags,
		Data: []byte{flags},
	}
}

// NewCompleteLocalNameAD creates a complete local name AD structure
func NewCompleteLocalNameAD(name string) ADStructure {
	return ADStructure{
		Type: ADTypeCompleteLocalName,
		Data: []byte(name),
	}
}

// NewComplete16BitServiceUUIDsAD creates a complete 16-bit service UUIDs AD structure
func NewComplete16BitServiceUUIDsAD(uuids []uint16) ADStructure {
	data := make([]byte, len(uuids)*2)
	for i, u := range uuids {
		binary.LittleEndian.PutUint16(data[i*2:], u)
	}
	return ADStructure{
		Type: ADTypeComplete16BitServiceUUIDs,
		Data: data,
	}
}

// NewComplete128BitServiceUUIDsAD creates a complete 128-bit service UUIDs AD structure.
// UUIDs are written in the little-endian order used on air.
func NewComplete128BitServiceUUIDsAD(uuids []uuid.UUID) ADStructure {
	data := make([]byte, len(uuids)*16)
	for i, u := range uuids {
		for j := 0; j < 16; j++ {
			data[i*16+j] = u[15-j]
		}
	}
	return ADStructure{
		Type: ADTypeComplete128BitServiceUUIDs,
		Data: data,
	}
}

// NewTxPowerLevelAD creates a Tx power level AD structure
func NewTxPowerLevelAD(powerLevel int8) ADStructure {
	return ADStructure{
		Type: ADTypeTxPowerLevel,
		Data: []byte{byte(powerLevel)},
	}
}

// ShortUUID returns the 16-bit alias of u if u is built on the SIG base UUID
func ShortUUID(u uuid.UUID) (uint16, bool) {
	if u[0] != 0 || u[1] != 0 {
		return 0, false
	}
	for i := 4; i < 16; i++ {
		if u[i] != BaseUUID[i] {
			return 0, false
		}
	}
	return binary.BigEndian.Uint16(u[2:4]), true
}

// FromShortUUID expands a 16-bit alias onto the SIG base UUID
func FromShortUUID(short uint16) uuid.UUID {
	u := BaseUUID
	binary.BigEndian.PutUint16(u[2:4], short)
	return u
}

// ServiceUUIDsAD splits uuids into a 16-bit list and a 128-bit list.
// Empty lists are omitted.
func ServiceUUIDsAD(uuids []uuid.UUID) []ADStructure {
	var short []uint16
	var long []uuid.UUID
	for _, u := range uuids {
		if s, ok := ShortUUID(u); ok {
			short = append(short, s)
		} else {
			long = append(long, u)
		}
	}

	var out []ADStructure
	if len(short) > 0 {
		out = append(out, NewComplete16BitServiceUUIDsAD(short))
	}
	if len(long) > 0 {
		out = append(out, NewComplete128BitServiceUUIDsAD(long))
	}
	return out
}

// BuildPayload encodes a general-discoverable LE-only advertisement. An empty
// name is left out, as is a nil txPower.
func BuildPayload(name string, uuids []uuid.UUID, txPower *int8) ([]byte, error) {
	structures := []ADStructure{NewFlagsAD(FlagLEGeneralDiscoverableMode | FlagBREDRNotSupported)}
	if name != "" {
		structures = append(structures, NewCompleteLocalNameAD(name))
	}
	structures = append(structures, ServiceUUIDsAD(uuids)...)
	if txPower != nil {
		structures = append(structures, NewTxPowerLevelAD(*txPower))
	}
	return EncodeADStructures(structures)
}

// GetLocalName extracts the local name from AD structures (complete or shortened)
func GetLocalName(structures []ADStructure) string {
	for _, s := range structures {
		if s.Type == ADTypeCompleteLocalName || s.Type == ADTypeShortenedLocalName {
			return string(s.Data)
		}
	}
	return ""
}

// GetFlags extracts the flags from AD structures
func GetFlags(structures []ADStructure) (byte, bool) {
	for _, s := range structures {
		if s.Type == ADTypeFlags && len(s.Data) > 0 {
			return s.Data[0], true
		}
	}
	return 0, false
}

// GetServiceUUIDs extracts all 16-bit and 128-bit service UUIDs from AD structures
func GetServiceUUIDs(structures []ADStructure) []uuid.UUID {
	var uuids []uuid.UUID
	for _, s := range structures {
		switch s.Type {
		case ADTypeComplete16BitServiceUUIDs, ADTypeIncomplete16BitServiceUUIDs:
			if len(s.Data)%2 != 0 {
				continue
			}
			for i := 0; i < len(s.Data); i += 2 {
				uuids = append(uuids, FromShortUUID(binary.LittleEndian.Uint16(s.Data[i:i+2])))
			}
		case ADTypeComplete128BitServiceUUIDs, ADTypeIncomplete128BitServiceUUIDs:
			if len(s.Data)%16 != 0 {
				continue
			}
			for i := 0; i < len(s.Data); i += 16 {
				var u uuid.UUID
				for j := 0; j < 16; j++ {
					u[j] = s.Data[i+15-j]
				}
				uuids = append(uuids, u)
			}
		}
	}
	return uuids
}

// ADTypeName returns a human-readable name for an AD type
func ADTypeName(adType byte) string {
	switch adType {
	case ADTypeFlags:
		return "Flags"
	case ADTypeIncomplete16BitServiceUUIDs:
		return "Incomplete 16-bit Service UUIDs"
	case ADTypeComplete16BitServiceUUIDs:
		return "Complete 16-bit Service UUIDs"
	case ADTypeIncomplete128BitServiceUUIDs:
		return "Incomplete 128-bit Service UUIDs"
	case ADTypeComplete128BitServiceUUIDs:
		return "Complete 128-bit Service UUIDs"
	case ADTypeShortenedLocalName:
		return "Shortened Local Name"
	case ADTypeCompleteLocalName:
		return "Complete Local Name"
	case ADTypeTxPowerLevel:
		return "Tx Power Level"
	case ADTypeManufacturerSpecificData:
		return "Manufacturer Specific Data"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", adType)
	}
}
