package att

// ATT Opcodes used by the read path (Bluetooth Core Spec v5.3 Vol 3, Part F, Section 3.4)
const (
	OpErrorResponse    = 0x01
	OpReadRequest      = 0x0A
	OpReadResponse     = 0x0B
	OpReadBlobRequest  = 0x0C
	OpReadBlobResponse = 0x0D
)

// OpcodeNames maps opcodes to human-readable names
var OpcodeNames = map[uint8]string{
	OpErrorResponse:    "Error Response",
	OpReadRequest:      "Read Request",
	OpReadResponse:     "Read Response",
	OpReadBlobRequest:  "Read Blob Request",
	OpReadBlobResponse: "Read Blob Response",
}

// ReadOpcode picks the request opcode for a read at offset.
// Reads past the start of a value use Read Blob.
func ReadOpcode(offset int) uint8 {
	if offset > 0 {
		return OpReadBlobRequest
	}
	return OpReadRequest
}

// GetResponseOpcode returns the expected response opcode for a given request opcode
// Returns 0 if the opcode doesn't have a response
func GetResponseOpcode(requestOpcode uint8) uint8 {
	switch requestOpcode {
	case OpReadRequest:
		return OpReadResponse
	case OpReadBlobRequest:
		return OpReadBlobResponse
	default:
		return 0
	}
}
