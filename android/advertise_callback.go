package android

import (
	"github.com/user/ble-peripheral/kotlin"
	"github.com/user/ble-peripheral/logger"
	"github.com/user/ble-peripheral/peripheral"
)

func (ad *androidAdvertiser) StartAdvertising(settings peripheral.AdvertiseSettings, data peripheral.AdvertiseData) {
	ad.le.StartAdvertising(toKotlinSettings(settings), toKotlinData(data), nil, ad.android)
}

func (ad *androidAdvertiser) StopAdvertising() {
	ad.le.StopAdvertising()
}

// ============================================================================
// AdvertiseCallback Implementation (implements kotlin.AdvertiseCallback interface)
// ============================================================================

func (a *Android) OnStartSuccess(settingsInEffect *kotlin.AdvertiseSettings) {
	logger.Debug(a.prefix(), "📡 Advertising started successfully")
	a.emit(peripheral.Event{Kind: peripheral.EventAdvertiseStarted})
}

func (a *Android) OnStartFailure(errorCode int) {
	logger.Debug(a.prefix(), "❌ Advertising failed: %s", peripheral.AdvertiseErrorString(errorCode))
	a.emit(peripheral.Event{Kind: peripheral.EventAdvertiseFailed, ErrorCode: errorCode})
}

func toKotlinSettings(s peripheral.AdvertiseSettings) *kotlin.AdvertiseSettings {
	out := &kotlin.AdvertiseSettings{
		Connectable: s.Connectable,
		Timeout:     s.TimeoutMs,
	}
	switch s.Mode {
	case peripheral.AdvertiseModeLowPower:
		out.AdvertiseMode = kotlin.ADVERTISE_MODE_LOW_POWER
	case peripheral.AdvertiseModeBalanced:
		out.AdvertiseMode = kotlin.ADVERTISE_MODE_BALANCED
	default:
		out.AdvertiseMode = kotlin.ADVERTISE_MODE_LOW_LATENCY
	}
	switch s.TxPower {
	case peripheral.TxPowerUltraLow:
		out.TxPowerLevel = kotlin.ADVERTISE_TX_POWER_ULTRA_LOW
	case peripheral.TxPowerLow:
		out.TxPowerLevel = kotlin.ADVERTISE_TX_POWER_LOW
	case peripheral.TxPowerMedium:
		out.TxPowerLevel = kotlin.ADVERTISE_TX_POWER_MEDIUM
	default:
		out.TxPowerLevel = kotlin.ADVERTISE_TX_POWER_HIGH
	}
	return out
}

func toKotlinData(d peripheral.AdvertiseData) *kotlin.AdvertiseData {
	out := &kotlin.AdvertiseData{IncludeDeviceName: d.IncludeDeviceName}
	for _, u := range d.ServiceUUIDs {
		out.ServiceUUIDs = append(out.ServiceUUIDs, u.String())
	}
	return out
}
