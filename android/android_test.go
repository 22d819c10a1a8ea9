package android

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/user/ble-peripheral/dataconv"
	"github.com/user/ble-peripheral/kotlin"
	"github.com/user/ble-peripheral/logger"
	"github.com/user/ble-peripheral/peripheral"
	"github.com/user/ble-peripheral/util"
	"github.com/user/ble-peripheral/wire"
	"github.com/user/ble-peripheral/wire/att"
)

const peripheralUUID = "android-peripheral"

var (
	serviceUUID = peripheral.ServiceUUID.String()
	charUUID    = peripheral.CharacteristicUUID.String()
	valueRegexp = regexp.MustCompile(`^[0-9a-z]{0,20}$`)
)

func TestMain(m *testing.M) {
	logger.SetLevel(logger.ERROR)
	os.Exit(m.Run())
}

// channelCallback reports peripheral callbacks as short strings
type channelCallback struct {
	events chan string
}

func newChannelCallback() *channelCallback {
	return &channelCallback{events: make(chan string, 32)}
}

func (c *channelCallback) OnAdvertisingStarted()        { c.events <- "started" }
func (c *channelCallback) OnAdvertisingFailed(code int) { c.events <- fmt.Sprintf("failed:%d", code) }
func (c *channelCallback) OnAdvertisingStopped()        { c.events <- "stopped" }
func (c *channelCallback) OnCentralConnected(d peripheral.Device) {
	c.events <- "connected:" + d.Address
}
func (c *channelCallback) OnCentralDisconnected(d peripheral.Device) {
	c.events <- "disconnected:" + d.Address
}

func (c *channelCallback) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-c.events:
		if got != want {
			t.Fatalf("Expected callback %q, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Timeout waiting for callback %q", want)
	}
}

func setupTestEnv(t *testing.T) *wire.Medium {
	t.Helper()
	t.Setenv(util.DataDirEnv, t.TempDir())
	return wire.NewMedium()
}

func startWire(t *testing.T, medium *wire.Medium, hardwareUUID string) *wire.Wire {
	t.Helper()
	w := wire.NewWire(medium, hardwareUUID)
	if err := w.Start(); err != nil {
		t.Fatalf("Failed to start wire: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func newPeripheral(t *testing.T, medium *wire.Medium, features kotlin.AdapterFeatures) (*Android, *peripheral.Manager, *channelCallback) {
	t.Helper()
	a := NewAndroid(startWire(t, medium, peripheralUUID), features)
	t.Cleanup(a.Close)

	cb := newChannelCallback()
	cfg := peripheral.DefaultConfig()
	cfg.Generator = dataconv.NewGenerator(rand.NewPCG(1, 2))
	m, err := peripheral.New(a, cb, cfg)
	if err != nil {
		t.Fatalf("peripheral.New: %v", err)
	}
	t.Cleanup(m.Close)
	return a, m, cb
}

func waitState(t *testing.T, m *peripheral.Manager, want peripheral.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for m.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Expected state %s, got %s", want, m.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAndroid_NoMultipleAdvertisement(t *testing.T) {
	medium := setupTestEnv(t)
	a := NewAndroid(startWire(t, medium, peripheralUUID), kotlin.AdapterFeatures{})

	if a.PeripheralModeSupported() {
		t.Error("Legacy controller should not support peripheral mode")
	}
	if a.Advertiser() != nil {
		t.Error("Advertiser should be a nil interface")
	}

	_, err := peripheral.New(a, nil, peripheral.DefaultConfig())
	if !errors.Is(err, peripheral.ErrUnsupportedCapability) {
		t.Errorf("Expected ErrUnsupportedCapability, got %v", err)
	}
}

func TestAndroid_PeripheralLifecycle(t *testing.T) {
	medium := setupTestEnv(t)
	_, m, cb := newPeripheral(t, medium, kotlin.DefaultFeatures())

	if err := m.SetupProfile(); err != nil {
		t.Fatalf("SetupProfile: %v", err)
	}
	table, err := wire.ReadGATTTable(peripheralUUID)
	if err != nil || len(table.Services) != 1 || table.Services[0].UUID != serviceUUID {
		t.Fatalf("Service not published: %+v %v", table, err)
	}

	m.StartAdvertising()
	cb.expect(t, "started")
	waitState(t, m, peripheral.StateAdvertising)

	ads := medium.Discover()
	if len(ads) != 1 || ads[0].Data.DeviceName != peripheral.AdvertisingName {
		t.Fatalf("Unexpected advertisements %+v", ads)
	}

	central := startWire(t, medium, "central-uuid")
	if err := central.Connect(peripheralUUID); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	cb.expect(t, "connected:central-uuid")
	cb.expect(t, "stopped")
	waitState(t, m, peripheral.StateConnected)
	if len(medium.Discover()) != 0 {
		t.Error("Peripheral should stop advertising while connected")
	}

	value, err := central.ReadCharacteristic(context.Background(), peripheralUUID, serviceUUID, charUUID, 0)
	if err != nil {
		t.Fatalf("Read at offset 0: %v", err)
	}
	if !valueRegexp.Match(value) {
		t.Errorf("Unexpected value %q", value)
	}

	_, err = central.ReadCharacteristic(context.Background(), peripheralUUID, serviceUUID, charUUID, 5)
	if code := att.GetErrorCode(err); code != att.ErrInvalidOffset {
		t.Errorf("Expected invalid offset at offset 5, got %v", err)
	}

	if err := central.Disconnect(peripheralUUID); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	cb.expect(t, "disconnected:central-uuid")
	cb.expect(t, "started")
	waitState(t, m, peripheral.StateAdvertising)
	if len(medium.Discover()) != 1 {
		t.Error("Peripheral should advertise again after disconnect")
	}
}

func TestAndroid_StopBeforeStartCallback(t *testing.T) {
	medium := setupTestEnv(t)
	_, m, cb := newPeripheral(t, medium, kotlin.DefaultFeatures())
	if err := m.SetupProfile(); err != nil {
		t.Fatalf("SetupProfile: %v", err)
	}

	m.StartAdvertising()
	m.StopAdvertising()
	cb.expect(t, "stopped")

	// outlive the adapter's start callback delay
	time.Sleep(100 * time.Millisecond)

	if m.State() != peripheral.StateIdle {
		t.Errorf("Expected idle after stop, got %s", m.State())
	}
	if len(medium.Discover()) != 0 {
		t.Error("Peripheral should not be advertising after stop")
	}
	select {
	case got := <-cb.events:
		t.Errorf("Unexpected callback %q after stop", got)
	default:
	}
}

func TestAndroid_ReadBeyondMaxLengthUnanswered(t *testing.T) {
	medium := setupTestEnv(t)
	_, m, cb := newPeripheral(t, medium, kotlin.DefaultFeatures())
	if err := m.SetupProfile(); err != nil {
		t.Fatalf("SetupProfile: %v", err)
	}
	m.StartAdvertising()
	cb.expect(t, "started")

	central := startWire(t, medium, "central-uuid")
	if err := central.Connect(peripheralUUID); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	cb.expect(t, "connected:central-uuid")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := central.ReadCharacteristic(ctx, peripheralUUID, serviceUUID, charUUID, peripheral.MaxCharacteristicLength)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected no response at offset %d, got %v", peripheral.MaxCharacteristicLength, err)
	}
}

func TestAndroid_DisabledAdapterFailsAdvertising(t *testing.T) {
	medium := setupTestEnv(t)
	a, m, cb := newPeripheral(t, medium, kotlin.DefaultFeatures())
	a.Adapter().Disable()

	m.StartAdvertising()
	cb.expect(t, fmt.Sprintf("failed:%d", peripheral.AdvertiseFailedInternalError))
	if m.State() != peripheral.StateIdle {
		t.Errorf("Expected idle after failure, got %s", m.State())
	}

	if err := a.SetName("x"); !errors.Is(err, ErrSetNameFailed) {
		t.Errorf("Expected ErrSetNameFailed, got %v", err)
	}
}

func TestAndroid_AlreadyStartedKeepsAdvertising(t *testing.T) {
	medium := setupTestEnv(t)
	_, m, cb := newPeripheral(t, medium, kotlin.DefaultFeatures())

	m.StartAdvertising()
	cb.expect(t, "started")
	m.StartAdvertising()
	cb.expect(t, fmt.Sprintf("failed:%d", peripheral.AdvertiseFailedAlreadyStarted))
	if m.State() != peripheral.StateAdvertising {
		t.Errorf("Expected advertising, got %s", m.State())
	}
}

func TestAndroid_SendResponseWithoutServer(t *testing.T) {
	medium := setupTestEnv(t)
	a := NewAndroid(startWire(t, medium, peripheralUUID), kotlin.DefaultFeatures())
	if a.SendResponse(peripheral.Device{Address: "nobody"}, 1, peripheral.StatusSuccess, 0, nil) {
		t.Error("SendResponse should fail before a service is added")
	}
}
