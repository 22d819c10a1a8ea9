package peripheral

import "time"

// Config tunes the peripheral. The zero value is not usable; start from DefaultConfig.
type Config struct {
	// Name advertised as the device's local name
	Name string

	// UpdateInterval between characteristic value refreshes
	UpdateInterval time.Duration

	AdvertiseMode AdvertiseMode
	TxPower       TxPower

	// PartialReads serves value[offset:] for nonzero offsets instead of
	// answering every nonzero offset with StatusInvalidOffset.
	PartialReads bool

	// Generator supplies the random payloads. Nil uses a randomly seeded one.
	Generator ValueGenerator
}

// DefaultConfig returns the configuration of the reference peripheral
func DefaultConfig() Config {
	return Config{
		Name:           AdvertisingName,
		UpdateInterval: time.Second,
		AdvertiseMode:  AdvertiseModeLowLatency,
		TxPower:        TxPowerHigh,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.UpdateInterval <= 0 {
		c.UpdateInterval = d.UpdateInterval
	}
	return c
}
