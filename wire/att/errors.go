package att

import (
	"errors"
	"fmt"
)

// Error codes a read can fail with (Core Spec v5.3 Vol 3, Part F, 3.4.1.1)
const (
	ErrReadNotPermitted    = 0x02
	ErrRequestNotSupported = 0x06
	ErrInvalidOffset       = 0x07
	ErrAttributeNotFound   = 0x0A
	ErrUnlikelyError       = 0x0E
)

func codeName(code uint8) string {
	switch code {
	case ErrReadNotPermitted:
		return "Read Not Permitted"
	case ErrRequestNotSupported:
		return "Request Not Supported"
	case ErrInvalidOffset:
		return "Invalid Offset"
	case ErrAttributeNotFound:
		return "Attribute Not Found"
	case ErrUnlikelyError:
		return "Unlikely Error"
	}
	return fmt.Sprintf("0x%02X", code)
}

// CodeForStatus maps a GATT status from a server's response onto the code
// put in the Error Response. Statuses with no one-byte form, such as
// Android's GATT_FAILURE, become ErrUnlikelyError.
func CodeForStatus(status int) uint8 {
	if status > 0 && status <= 0xFF {
		return uint8(status)
	}
	return ErrUnlikelyError
}

// Error is an Error Response received for a request
type Error struct {
	Code          uint8
	RequestOpcode uint8
}

func (e *Error) Error() string {
	opcodeName, ok := OpcodeNames[e.RequestOpcode]
	if !ok {
		opcodeName = fmt.Sprintf("0x%02X", e.RequestOpcode)
	}
	return fmt.Sprintf("ATT Error: %s (request %s)", codeName(e.Code), opcodeName)
}

func NewError(code uint8, requestOpcode uint8) *Error {
	return &Error{Code: code, RequestOpcode: requestOpcode}
}

// IsATTError checks if err wraps an ATT error with a specific code
func IsATTError(err error, code uint8) bool {
	var attErr *Error
	return errors.As(err, &attErr) && attErr.Code == code
}

// GetErrorCode returns the ATT error code from an error, or 0 if not an ATT error
func GetErrorCode(err error) uint8 {
	var attErr *Error
	if errors.As(err, &attErr) {
		return attErr.Code
	}
	return 0
}
