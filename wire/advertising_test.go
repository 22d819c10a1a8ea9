package wire

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAdvertising_PersistAndDiscover(t *testing.T) {
	dir := setupTestEnv(t)
	medium := NewMedium()
	peripheral := startWire(t, medium, "peripheral")
	startWire(t, medium, "bystander")

	if peripheral.IsAdvertising() {
		t.Fatal("Should not advertise before WriteAdvertisingData")
	}

	txPower := 1
	data := &AdvertisingData{
		DeviceName:    "MyDevice",
		ServiceUUIDs:  []string{testService},
		TxPowerLevel:  &txPower,
		IsConnectable: true,
		Payload:       []byte{0x02, 0x01, 0x06},
	}
	if err := peripheral.WriteAdvertisingData(data); err != nil {
		t.Fatalf("WriteAdvertisingData failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "peripheral", "advertising.json")); err != nil {
		t.Errorf("advertising.json not written: %v", err)
	}

	stored, err := ReadAdvertisingData("peripheral")
	if err != nil {
		t.Fatalf("ReadAdvertisingData failed: %v", err)
	}
	if stored.DeviceName != "MyDevice" || *stored.TxPowerLevel != 1 || len(stored.Payload) != 3 {
		t.Errorf("Unexpected stored advertisement %+v", stored)
	}

	found := medium.Discover()
	if len(found) != 1 {
		t.Fatalf("Expected 1 advertisement, got %d", len(found))
	}
	if found[0].HardwareUUID != "peripheral" || found[0].Data.DeviceName != "MyDevice" {
		t.Errorf("Unexpected advertisement %+v", found[0])
	}
	if found[0].RSSI > -40 || found[0].RSSI < -90 {
		t.Errorf("RSSI out of range: %d", found[0].RSSI)
	}

	// discovery returns a copy
	data.DeviceName = "Changed"
	if medium.Discover()[0].Data.DeviceName != "MyDevice" {
		t.Error("Advertisement aliased caller data")
	}

	peripheral.ClearAdvertisingData()
	if peripheral.IsAdvertising() || len(medium.Discover()) != 0 {
		t.Error("Advertising should be cleared")
	}
	if _, err := ReadAdvertisingData("peripheral"); err == nil {
		t.Error("advertising.json should be removed")
	}
}

func TestAdvertising_RequiresStart(t *testing.T) {
	setupTestEnv(t)
	w := NewWire(NewMedium(), "peripheral")
	if err := w.WriteAdvertisingData(&AdvertisingData{}); err != ErrStopped {
		t.Errorf("Expected ErrStopped, got %v", err)
	}
}
