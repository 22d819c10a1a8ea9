package util

import (
	"os"
	"path/filepath"
)

// DataDirEnv overrides the data directory
const DataDirEnv = "BLE_PERIPHERAL_DIR"

// GetDataDir returns the data directory path
func GetDataDir() string {
	if envDir := os.Getenv(DataDirEnv); envDir != "" {
		return envDir
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "ble-peripheral-data")
	}
	return filepath.Join(home, ".ble-peripheral-data")
}

// GetDeviceCacheDir returns the cache directory for a specific device
func GetDeviceCacheDir(deviceUUID string) string {
	return filepath.Join(GetDataDir(), deviceUUID)
}
