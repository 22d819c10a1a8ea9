// Package gatthost runs the peripheral on a real HCI controller through
// github.com/paypal/gatt. Only Linux is supported.
package gatthost

import (
	"errors"
	"time"
)

var (
	// ErrUnsupportedPlatform is returned by New on platforms without HCI sockets
	ErrUnsupportedPlatform = errors.New("gatthost: HCI host requires linux")

	// ErrNotPoweredOn is returned by New when the controller never powers on
	ErrNotPoweredOn = errors.New("gatthost: controller not powered on")
)

// Config selects and tunes the HCI controller
type Config struct {
	// DeviceID is the hciN index; -1 picks the first LE-capable controller
	DeviceID int

	// MaxConnections the controller accepts at once
	MaxConnections int

	// InitTimeout bounds the wait for the controller to power on
	InitTimeout time.Duration

	// ResponseTimeout bounds how long a read waits for SendResponse before
	// the controller answers with an unlikely error
	ResponseTimeout time.Duration
}

// DefaultConfig returns a config for the first controller
func DefaultConfig() Config {
	return Config{
		DeviceID:        -1,
		MaxConnections:  1,
		InitTimeout:     5 * time.Second,
		ResponseTimeout: 2 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxConnections <= 0 {
		c.MaxConnections = d.MaxConnections
	}
	if c.InitTimeout <= 0 {
		c.InitTimeout = d.InitTimeout
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = d.ResponseTimeout
	}
	return c
}
