package kotlin

import (
	"sync"
	"time"

	"github.com/user/ble-peripheral/logger"
)

// scanInterval is how often a running scan polls the medium
const scanInterval = 100 * time.Millisecond

// ScanCallback matches Android's ScanCallback
type ScanCallback interface {
	OnScanResult(callbackType int, result *ScanResult)
}

// ScanResult matches Android's ScanResult class
type ScanResult struct {
	Device       *BluetoothDevice
	Rssi         int
	ScanRecord   []byte // raw advertising payload
	ServiceUUIDs []string
}

// BluetoothLeScanner matches Android's BluetoothLeScanner class
type BluetoothLeScanner struct {
	adapter *BluetoothAdapter

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// StartScan reports every advertising device, repeatedly, until StopScan.
// Our own advertisement is never reported.
func (s *BluetoothLeScanner) StartScan(callback ScanCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	logger.Debug(s.adapter.prefix(), "🔍 Started scanning")
	go s.run(callback, s.stop, s.done)
}

// StopScan stops a running scan and waits for the last callback to return
func (s *BluetoothLeScanner) StopScan() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	logger.Debug(s.adapter.prefix(), "🔍 Stopped scanning")
}

func (s *BluetoothLeScanner) run(callback ScanCallback, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()

	for {
		if s.adapter.IsEnabled() {
			s.reportOnce(callback, stop)
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

func (s *BluetoothLeScanner) reportOnce(callback ScanCallback, stop <-chan struct{}) {
	self := s.adapter.GetAddress()
	for _, adv := range s.adapter.wire.Medium().Discover() {
		select {
		case <-stop:
			return
		default:
		}
		if adv.HardwareUUID == self {
			continue
		}
		callback.OnScanResult(CALLBACK_TYPE_ALL_MATCHES, &ScanResult{
			Device: &BluetoothDevice{
				Name:    adv.Data.DeviceName,
				Address: adv.HardwareUUID,
				adapter: s.adapter,
			},
			Rssi:         adv.RSSI,
			ScanRecord:   adv.Data.Payload,
			ServiceUUIDs: adv.Data.ServiceUUIDs,
		})
	}
}
