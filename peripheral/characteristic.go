package peripheral

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Characteristic is a GATT characteristic whose value can be replaced while
// readers are active. Every Value call observes one complete published value.
type Characteristic struct {
	UUID        uuid.UUID
	Properties  int
	Permissions int
	MaxLength   int

	value     atomic.Pointer[[]byte]
	updatedAt atomic.Int64 // unix nanos of last SetValue
}

// NewCharacteristic returns a characteristic with an empty value
func NewCharacteristic(id uuid.UUID, properties, permissions, maxLength int) *Characteristic {
	c := &Characteristic{
		UUID:        id,
		Properties:  properties,
		Permissions: permissions,
		MaxLength:   maxLength,
	}
	empty := []byte{}
	c.value.Store(&empty)
	return c
}

// Value returns a copy of the current value
func (c *Characteristic) Value() []byte {
	p := c.value.Load()
	out := make([]byte, len(*p))
	copy(out, *p)
	return out
}

// SetValue publishes a copy of v. The previous value is kept if v is too long.
func (c *Characteristic) SetValue(v []byte) error {
	if len(v) > c.MaxLength {
		return fmt.Errorf("%w: %d bytes, max %d", ErrValueTooLong, len(v), c.MaxLength)
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	c.value.Store(&cp)
	c.updatedAt.Store(time.Now().UnixNano())
	return nil
}

// SetStringValue publishes s as UTF-8 bytes
func (c *Characteristic) SetStringValue(s string) error {
	return c.SetValue([]byte(s))
}

// UpdatedAt returns when the value was last replaced, zero if never
func (c *Characteristic) UpdatedAt() time.Time {
	n := c.updatedAt.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// IsReadable reports whether the read property is set
func (c *Characteristic) IsReadable() bool {
	return c.Properties&PropertyRead != 0
}
