//go:build !linux

package gatthost

import "github.com/user/ble-peripheral/peripheral"

// Host is unavailable off linux; New always fails
type Host struct{}

var _ peripheral.Host = (*Host)(nil)

// New returns ErrUnsupportedPlatform
func New(cfg Config) (*Host, error) {
	return nil, ErrUnsupportedPlatform
}

func (h *Host) PeripheralModeSupported() bool { return false }

func (h *Host) Advertiser() peripheral.Advertiser { return nil }

func (h *Host) SetName(string) error { return ErrUnsupportedPlatform }

func (h *Host) AddService(*peripheral.Service) error { return ErrUnsupportedPlatform }

func (h *Host) SendResponse(peripheral.Device, int, peripheral.Status, int, []byte) bool {
	return false
}

func (h *Host) SetEventHandler(func(peripheral.Event)) {}

func (h *Host) Close() error { return nil }
