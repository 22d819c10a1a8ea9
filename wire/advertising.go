package wire

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/user/ble-peripheral/logger"
	"github.com/user/ble-peripheral/util"
)

const advertisingFile = "advertising.json"

// WriteAdvertisingData starts broadcasting data. It replaces any previous
// advertisement and persists it to the device directory.
func (w *Wire) WriteAdvertisingData(data *AdvertisingData) error {
	if !w.IsStarted() {
		return ErrStopped
	}
	if err := writeDeviceJSON(w.hardwareUUID, advertisingFile, data); err != nil {
		return err
	}

	c := *data
	c.ServiceUUIDs = append([]string(nil), data.ServiceUUIDs...)
	c.Payload = append([]byte(nil), data.Payload...)

	w.mu.Lock()
	w.advertising = &c
	w.mu.Unlock()

	logger.Debug(w.prefix(), "📡 Advertising %q (%d byte payload)", data.DeviceName, len(data.Payload))
	return nil
}

// ClearAdvertisingData stops broadcasting
func (w *Wire) ClearAdvertisingData() {
	w.mu.Lock()
	w.advertising = nil
	w.mu.Unlock()

	os.Remove(filepath.Join(util.GetDeviceCacheDir(w.hardwareUUID), advertisingFile))
}

// IsAdvertising reports whether the device is currently broadcasting
func (w *Wire) IsAdvertising() bool {
	_, ok := w.currentAdvertisement()
	return ok
}

func (w *Wire) currentAdvertisement() (AdvertisingData, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.started || w.advertising == nil {
		return AdvertisingData{}, false
	}
	return *w.advertising, true
}

// ReadAdvertisingData reads the last advertisement a device persisted
func ReadAdvertisingData(deviceUUID string) (*AdvertisingData, error) {
	data, err := os.ReadFile(filepath.Join(util.GetDeviceCacheDir(deviceUUID), advertisingFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", advertisingFile, err)
	}

	var adv AdvertisingData
	if err := json.Unmarshal(data, &adv); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", advertisingFile, err)
	}
	return &adv, nil
}
