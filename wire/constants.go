package wire

import "time"

// ConnectionRole represents the role in a specific connection
type ConnectionRole string

const (
	RoleCentral    ConnectionRole = "central"    // We initiated connection
	RolePeripheral ConnectionRole = "peripheral" // They initiated connection
)

// BLE timing constants used with WithRealisticTiming
const (
	// Connection establishment takes time in real BLE
	MinConnectionDelay = 30 * time.Millisecond
	MaxConnectionDelay = 100 * time.Millisecond

	// Connection interval affects message delivery latency
	MinConnectionInterval = 8 * time.Millisecond // 7.5ms rounded up
	MaxConnectionInterval = 50 * time.Millisecond

	// Service discovery is not instant
	MinServiceDiscoveryDelay = 100 * time.Millisecond
	MaxServiceDiscoveryDelay = 500 * time.Millisecond
)

// DefaultMTU is the BLE 4.0 default: 23 bytes total, 20 bytes of attribute value
const DefaultMTU = 23

// DefaultRequestTimeout bounds a single ATT request
const DefaultRequestTimeout = 5 * time.Second

// inboxSize is the per-device event queue depth
const inboxSize = 256
