package peripheral

import (
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/user/ble-peripheral/logger"
)

func TestMain(m *testing.M) {
	logger.SetLevel(logger.ERROR)
	os.Exit(m.Run())
}

type response struct {
	device    Device
	requestID int
	status    Status
	offset    int
	value     []byte
}

type startCall struct {
	settings AdvertiseSettings
	data     AdvertiseData
}

// fakeAdvertiser records requests. onStart runs synchronously inside
// StartAdvertising so tests can deliver the host's answer.
type fakeAdvertiser struct {
	mu      sync.Mutex
	starts  []startCall
	stops   int
	onStart func(settings AdvertiseSettings, data AdvertiseData)
}

func (a *fakeAdvertiser) StartAdvertising(settings AdvertiseSettings, data AdvertiseData) {
	a.mu.Lock()
	a.starts = append(a.starts, startCall{settings: settings, data: data})
	onStart := a.onStart
	a.mu.Unlock()

	if onStart != nil {
		onStart(settings, data)
	}
}

func (a *fakeAdvertiser) StopAdvertising() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stops++
}

func (a *fakeAdvertiser) startCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.starts)
}

func (a *fakeAdvertiser) stopCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stops
}

func (a *fakeAdvertiser) lastStart() startCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.starts[len(a.starts)-1]
}

type fakeHost struct {
	mu           sync.Mutex
	unsupported  bool
	noAdvertiser bool
	nameErr      error
	addErr       error
	name         string
	services     []*Service
	responses    []response
	handler      func(Event)
	adv          *fakeAdvertiser
}

func newFakeHost() *fakeHost {
	return &fakeHost{adv: &fakeAdvertiser{}}
}

func (h *fakeHost) PeripheralModeSupported() bool { return !h.unsupported }

func (h *fakeHost) Advertiser() Advertiser {
	if h.noAdvertiser {
		return nil
	}
	return h.adv
}

func (h *fakeHost) SetName(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.nameErr != nil {
		return h.nameErr
	}
	h.name = name
	return nil
}

func (h *fakeHost) AddService(s *Service) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.addErr != nil {
		return h.addErr
	}
	h.services = append(h.services, s)
	return nil
}

func (h *fakeHost) SendResponse(device Device, requestID int, status Status, offset int, value []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responses = append(h.responses, response{device, requestID, status, offset, value})
	return true
}

func (h *fakeHost) SetEventHandler(handler func(Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = handler
}

// deliver sends an event the way a host callback thread would
func (h *fakeHost) deliver(ev Event) {
	h.mu.Lock()
	handler := h.handler
	h.mu.Unlock()
	if handler != nil {
		handler(ev)
	}
}

func (h *fakeHost) responseList() []response {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]response(nil), h.responses...)
}

func (h *fakeHost) serviceCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.services)
}

// recordingCallback records every callback as a short string
type recordingCallback struct {
	mu     sync.Mutex
	events []string
}

func (c *recordingCallback) add(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, s)
}

func (c *recordingCallback) OnAdvertisingStarted() { c.add("started") }
func (c *recordingCallback) OnAdvertisingFailed(code int) {
	c.add(fmt.Sprintf("failed:%d", code))
}
func (c *recordingCallback) OnAdvertisingStopped() { c.add("stopped") }
func (c *recordingCallback) OnCentralConnected(d Device) {
	c.add("connected:" + d.Address)
}
func (c *recordingCallback) OnCentralDisconnected(d Device) {
	c.add("disconnected:" + d.Address)
}

func (c *recordingCallback) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

// fixedGenerator always produces strings of one length made of one character
type fixedGenerator struct {
	length int
	char   byte
	err    error
}

func (g *fixedGenerator) IntN(n int) int { return g.length }

func (g *fixedGenerator) RandomString(length int) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	b := make([]byte, length)
	for i := range b {
		b[i] = g.char
	}
	return string(b), nil
}

func newTestManager(t *testing.T, host *fakeHost, cfg Config) (*Manager, *recordingCallback) {
	t.Helper()
	cb := &recordingCallback{}
	m, err := New(host, cb, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(m.Close)
	return m, cb
}
