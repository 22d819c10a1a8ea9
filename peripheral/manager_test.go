package peripheral

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var central = Device{Address: "central-uuid-0001", Name: "Central"}

func TestNew_UnsupportedCapability(t *testing.T) {
	host := newFakeHost()
	host.unsupported = true

	m, err := New(host, nil, DefaultConfig())
	assert.Nil(t, m)
	assert.True(t, errors.Is(err, ErrUnsupportedCapability))
	assert.Zero(t, host.serviceCount(), "no profile setup before capability check")
}

func TestNew_NoAdvertiser(t *testing.T) {
	host := newFakeHost()
	host.noAdvertiser = true

	_, err := New(host, nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrUnsupportedCapability)
}

func TestNew_NilHost(t *testing.T) {
	_, err := New(nil, nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrUnsupportedCapability)
}

func TestSetupProfile_Idempotent(t *testing.T) {
	host := newFakeHost()
	m, _ := newTestManager(t, host, DefaultConfig())

	require.NoError(t, m.SetupProfile())
	require.NoError(t, m.SetupProfile())
	assert.Equal(t, 1, host.serviceCount())

	svc := host.services[0]
	assert.Equal(t, ServiceUUID, svc.UUID)
	assert.Equal(t, ServiceTypePrimary, svc.Type)
	require.Len(t, svc.Characteristics, 1)

	char := svc.Characteristics[0]
	assert.Equal(t, CharacteristicUUID, char.UUID)
	assert.Equal(t, PropertyRead, char.Properties)
	assert.Equal(t, PermissionRead, char.Permissions)
	assert.Equal(t, MaxCharacteristicLength, char.MaxLength)
	assert.True(t, char.IsReadable())
}

func TestSetupProfile_AddServiceError(t *testing.T) {
	host := newFakeHost()
	host.addErr = errors.New("gatt server closed")
	m, _ := newTestManager(t, host, DefaultConfig())

	err := m.SetupProfile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gatt server closed")
	assert.False(t, m.updater.Running())
}

func TestSetupProfile_StartsUpdater(t *testing.T) {
	host := newFakeHost()
	cfg := DefaultConfig()
	cfg.UpdateInterval = 10 * time.Millisecond
	cfg.Generator = &fixedGenerator{length: 7, char: 'k'}
	m, _ := newTestManager(t, host, cfg)

	require.NoError(t, m.SetupProfile())
	assert.Eventually(t, func() bool {
		return string(m.Characteristic().Value()) == "kkkkkkk"
	}, time.Second, 5*time.Millisecond)
}

func TestStartAdvertising_Configuration(t *testing.T) {
	host := newFakeHost()
	m, _ := newTestManager(t, host, DefaultConfig())

	m.StartAdvertising()

	require.Equal(t, 1, host.adv.startCount())
	call := host.adv.lastStart()
	assert.Equal(t, AdvertiseModeLowLatency, call.settings.Mode)
	assert.Equal(t, TxPowerHigh, call.settings.TxPower)
	assert.True(t, call.settings.Connectable)
	assert.True(t, call.data.IncludeDeviceName)
	assert.Equal(t, []uuid.UUID{ServiceUUID}, call.data.ServiceUUIDs)
	assert.Equal(t, "MyDevice", host.name)
	assert.Equal(t, StateAdvertising, m.State())
}

func TestStartAdvertising_ResultsArriveThroughCallback(t *testing.T) {
	host := newFakeHost()
	m, cb := newTestManager(t, host, DefaultConfig())

	host.adv.onStart = func(AdvertiseSettings, AdvertiseData) {
		go host.deliver(Event{Kind: EventAdvertiseStarted})
	}
	m.StartAdvertising()

	assert.Eventually(t, func() bool {
		return len(cb.list()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"started"}, cb.list())
	assert.Equal(t, StateAdvertising, m.State())
}

func TestStartAdvertising_HostFailure(t *testing.T) {
	host := newFakeHost()
	m, cb := newTestManager(t, host, DefaultConfig())

	m.StartAdvertising()
	host.deliver(Event{Kind: EventAdvertiseFailed, ErrorCode: AdvertiseFailedTooManyAdvertisers})

	assert.Equal(t, []string{"failed:2"}, cb.list())
	assert.Equal(t, StateIdle, m.State())

	// caller may retry
	m.StartAdvertising()
	host.deliver(Event{Kind: EventAdvertiseStarted})
	assert.Equal(t, []string{"failed:2", "started"}, cb.list())
	assert.Equal(t, StateAdvertising, m.State())
}

func TestStartAdvertising_SetNameFailureIsReported(t *testing.T) {
	host := newFakeHost()
	host.nameErr = errors.New("adapter off")
	m, cb := newTestManager(t, host, DefaultConfig())

	m.StartAdvertising()

	assert.Equal(t, 0, host.adv.startCount())
	assert.Equal(t, []string{"failed:4"}, cb.list())
	assert.Equal(t, StateIdle, m.State())
}

func TestStopAdvertising_SignalsImmediately(t *testing.T) {
	host := newFakeHost()
	m, cb := newTestManager(t, host, DefaultConfig())

	m.StartAdvertising()
	m.StopAdvertising()

	assert.Equal(t, 1, host.adv.stopCount())
	assert.Equal(t, []string{"stopped"}, cb.list())
	assert.Equal(t, StateIdle, m.State())
}

func TestStopAdvertising_DropsLateStartResult(t *testing.T) {
	host := newFakeHost()
	m, cb := newTestManager(t, host, DefaultConfig())

	m.StartAdvertising()
	m.StopAdvertising()
	host.deliver(Event{Kind: EventAdvertiseStarted})

	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, []string{"stopped"}, cb.list())

	m.StartAdvertising()
	m.StopAdvertising()
	host.deliver(Event{Kind: EventAdvertiseFailed, ErrorCode: AdvertiseFailedInternalError})

	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, []string{"stopped", "stopped"}, cb.list())
}

func TestConnect_DropsLateStartResult(t *testing.T) {
	host := newFakeHost()
	m, cb := newTestManager(t, host, DefaultConfig())

	m.StartAdvertising()
	host.deliver(Event{Kind: EventConnectionChanged, Device: central, Status: StatusSuccess, LinkState: LinkConnected})
	host.deliver(Event{Kind: EventAdvertiseStarted})

	assert.Equal(t, StateConnected, m.State())
	assert.Equal(t, []string{"connected:" + central.Address, "stopped"}, cb.list())
}

func TestConnectionLifecycle(t *testing.T) {
	host := newFakeHost()
	m, cb := newTestManager(t, host, DefaultConfig())

	m.StartAdvertising()
	host.deliver(Event{Kind: EventAdvertiseStarted})
	require.Equal(t, StateAdvertising, m.State())

	host.deliver(Event{Kind: EventConnectionChanged, Device: central, Status: StatusSuccess, LinkState: LinkConnected})
	assert.Equal(t, StateConnected, m.State())
	assert.Equal(t, 1, host.adv.stopCount(), "advertising suspended on connect")

	host.deliver(Event{Kind: EventConnectionChanged, Device: central, Status: StatusSuccess, LinkState: LinkDisconnected})
	assert.Equal(t, StateAdvertising, m.State())
	assert.Equal(t, 2, host.adv.startCount(), "advertising restarted on disconnect")

	assert.Equal(t, []string{
		"started",
		"connected:" + central.Address,
		"stopped",
		"disconnected:" + central.Address,
	}, cb.list())
}

func TestConnectionChange_FailureStatusIgnored(t *testing.T) {
	host := newFakeHost()
	m, cb := newTestManager(t, host, DefaultConfig())
	m.StartAdvertising()

	host.deliver(Event{Kind: EventConnectionChanged, Device: central, Status: StatusFailure, LinkState: LinkConnected})
	assert.Equal(t, StateAdvertising, m.State())

	host.deliver(Event{Kind: EventConnectionChanged, Device: central, Status: StatusFailure, LinkState: LinkDisconnected})
	assert.Equal(t, StateAdvertising, m.State())

	assert.Empty(t, cb.list())
	assert.Equal(t, 1, host.adv.startCount())
	assert.Equal(t, 0, host.adv.stopCount())
}

func TestConnectionChange_UnknownLinkStateIgnored(t *testing.T) {
	host := newFakeHost()
	m, cb := newTestManager(t, host, DefaultConfig())
	m.StartAdvertising()

	host.deliver(Event{Kind: EventConnectionChanged, Device: central, Status: StatusSuccess, LinkState: LinkState(1)})
	assert.Equal(t, StateAdvertising, m.State())
	assert.Empty(t, cb.list())
}

func TestDisconnect_ReadvertiseFailureIsObservable(t *testing.T) {
	host := newFakeHost()
	m, cb := newTestManager(t, host, DefaultConfig())

	host.deliver(Event{Kind: EventConnectionChanged, Device: central, Status: StatusSuccess, LinkState: LinkConnected})

	host.adv.onStart = func(AdvertiseSettings, AdvertiseData) {
		host.deliver(Event{Kind: EventAdvertiseFailed, ErrorCode: AdvertiseFailedInternalError})
	}
	host.deliver(Event{Kind: EventConnectionChanged, Device: central, Status: StatusSuccess, LinkState: LinkDisconnected})

	assert.Equal(t, StateIdle, m.State(), "neither advertising nor connected")
	events := cb.list()
	assert.Equal(t, "failed:4", events[len(events)-1])
}

func TestAdvertiseFailed_AlreadyStartedKeepsAdvertising(t *testing.T) {
	host := newFakeHost()
	m, cb := newTestManager(t, host, DefaultConfig())

	m.StartAdvertising()
	host.deliver(Event{Kind: EventAdvertiseFailed, ErrorCode: AdvertiseFailedAlreadyStarted})

	assert.Equal(t, StateAdvertising, m.State())
	assert.Equal(t, []string{"failed:3"}, cb.list())
}

func TestReadRequest_OffsetHandling(t *testing.T) {
	host := newFakeHost()
	m, _ := newTestManager(t, host, DefaultConfig())
	require.NoError(t, m.Characteristic().SetStringValue("abc123xyz"))

	read := func(id, offset int) {
		host.deliver(Event{
			Kind:               EventReadRequested,
			Device:             central,
			RequestID:          id,
			Offset:             offset,
			CharacteristicUUID: CharacteristicUUID,
		})
	}

	read(1, 0)
	read(2, 5)
	read(3, 25)
	read(4, MaxCharacteristicLength)

	rsp := host.responseList()
	require.Len(t, rsp, 2, "offsets >= max length get no response")

	assert.Equal(t, 1, rsp[0].requestID)
	assert.Equal(t, StatusSuccess, rsp[0].status)
	assert.Equal(t, 0, rsp[0].offset)
	assert.Equal(t, "abc123xyz", string(rsp[0].value))
	assert.Equal(t, central, rsp[0].device)

	assert.Equal(t, 2, rsp[1].requestID)
	assert.Equal(t, StatusInvalidOffset, rsp[1].status)
	assert.Equal(t, 5, rsp[1].offset)
	assert.Equal(t, "abc123xyz", string(rsp[1].value))
}

func TestReadRequest_UnknownCharacteristic(t *testing.T) {
	host := newFakeHost()
	m, cb := newTestManager(t, host, DefaultConfig())
	m.StartAdvertising()

	host.deliver(Event{
		Kind:               EventReadRequested,
		Device:             central,
		RequestID:          9,
		CharacteristicUUID: uuid.MustParse("00002a00-0000-1000-8000-00805f9b34fb"),
	})

	assert.Empty(t, host.responseList())
	assert.Empty(t, cb.list())
	assert.Equal(t, StateAdvertising, m.State())
}

func TestReadRequest_PartialReads(t *testing.T) {
	host := newFakeHost()
	cfg := DefaultConfig()
	cfg.PartialReads = true
	m, _ := newTestManager(t, host, cfg)
	require.NoError(t, m.Characteristic().SetStringValue("0123456789"))

	for i, offset := range []int{0, 4, 10, 12} {
		host.deliver(Event{Kind: EventReadRequested, Device: central, RequestID: i, Offset: offset, CharacteristicUUID: CharacteristicUUID})
	}

	rsp := host.responseList()
	require.Len(t, rsp, 4)
	assert.Equal(t, "0123456789", string(rsp[0].value))
	assert.Equal(t, StatusSuccess, rsp[1].status)
	assert.Equal(t, "456789", string(rsp[1].value))
	assert.Equal(t, StatusSuccess, rsp[2].status)
	assert.Empty(t, rsp[2].value)
	assert.Equal(t, StatusInvalidOffset, rsp[3].status)
}

func TestReadRequest_ConcurrentWithUpdates(t *testing.T) {
	host := newFakeHost()
	m, _ := newTestManager(t, host, DefaultConfig())
	char := m.Characteristic()

	patterns := []string{"", "a", "bbbbb", strings.Repeat("c", 19), strings.Repeat("d", 20)}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if err := char.SetStringValue(patterns[i%len(patterns)]); err != nil {
				t.Errorf("SetStringValue: %v", err)
				return
			}
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				host.deliver(Event{Kind: EventReadRequested, Device: central, RequestID: r*1000 + i, CharacteristicUUID: CharacteristicUUID})
			}
		}(r)
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()

	valid := map[string]bool{}
	for _, p := range patterns {
		valid[p] = true
	}
	for _, rsp := range host.responseList() {
		if !valid[string(rsp.value)] {
			t.Fatalf("observed torn value %q", rsp.value)
		}
	}
}

func TestClose_DropsLaterEvents(t *testing.T) {
	host := newFakeHost()
	cfg := DefaultConfig()
	cfg.UpdateInterval = 5 * time.Millisecond
	m, cb := newTestManager(t, host, cfg)
	require.NoError(t, m.SetupProfile())

	m.Close()
	m.Close()

	assert.False(t, m.updater.Running())
	assert.Equal(t, StateIdle, m.State())

	m.HandleEvent(Event{Kind: EventConnectionChanged, Device: central, Status: StatusSuccess, LinkState: LinkConnected})
	m.StartAdvertising()
	assert.Empty(t, cb.list())
	assert.Equal(t, StateIdle, m.State())
}

func TestSnapshot(t *testing.T) {
	host := newFakeHost()
	m, _ := newTestManager(t, host, DefaultConfig())
	require.NoError(t, m.Characteristic().SetStringValue("hi"))

	host.deliver(Event{Kind: EventConnectionChanged, Device: central, Status: StatusSuccess, LinkState: LinkConnected})

	snap := m.Snapshot().AsMap()
	assert.Equal(t, "connected", snap["state"])
	assert.Equal(t, "MyDevice", snap["name"])
	assert.Equal(t, ServiceUUID.String(), snap["service_uuid"])
	assert.Equal(t, "hi", snap["value"])
	assert.Equal(t, "6869", snap["value_hex"])
	assert.Equal(t, float64(2), snap["value_length"])
	assert.Contains(t, snap, "updated_at")

	c, ok := snap["central"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, central.Address, c["address"])
}
