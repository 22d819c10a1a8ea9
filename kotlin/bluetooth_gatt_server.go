package kotlin

import (
	"strings"
	"sync"

	"github.com/user/ble-peripheral/logger"
	"github.com/user/ble-peripheral/wire"
	"github.com/user/ble-peripheral/wire/att"
)

// BluetoothGattServerCallback matches Android's BluetoothGattServerCallback.
// Methods run on the adapter's delivery goroutine, one at a time.
type BluetoothGattServerCallback interface {
	OnConnectionStateChange(device *BluetoothDevice, status int, newState int)
	OnCharacteristicReadRequest(device *BluetoothDevice, requestId int, offset int, characteristic *BluetoothGattCharacteristic)
}

// BluetoothGattServer matches Android's BluetoothGattServer class.
// Manages the local GATT database when device is in peripheral role
type BluetoothGattServer struct {
	adapter  *BluetoothAdapter
	wire     *wire.Wire
	callback BluetoothGattServerCallback

	mu               sync.Mutex
	services         []*BluetoothGattService
	connectedDevices map[string]*BluetoothDevice // device address -> device
	pending          map[int]pendingRequest      // request id -> request awaiting SendResponse
	nextRequestID    int
	closed           bool
}

type pendingRequest struct {
	device string
	msg    *wire.GATTMessage
}

func newBluetoothGattServer(adapter *BluetoothAdapter, callback BluetoothGattServerCallback) *BluetoothGattServer {
	return &BluetoothGattServer{
		adapter:          adapter,
		wire:             adapter.wire,
		callback:         callback,
		connectedDevices: make(map[string]*BluetoothDevice),
		pending:          make(map[int]pendingRequest),
		nextRequestID:    1,
	}
}

// AddService adds a service to the GATT server and republishes the table
// Matches: gattServer.addService(service)
func (s *BluetoothGattServer) AddService(service *BluetoothGattService) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	for _, c := range service.Characteristics {
		c.Service = service
	}
	s.services = append(s.services, service)
	s.mu.Unlock()

	if err := s.wire.WriteGATTTable(s.buildGATTTable()); err != nil {
		logger.Warn(s.adapter.prefix(), "⚠️  Failed to add service: %v", err)
		s.mu.Lock()
		s.services = s.services[:len(s.services)-1]
		s.mu.Unlock()
		return false
	}

	logger.Info(s.adapter.prefix(), "📋 Added Service to GATT: %s", service.UUID)
	return true
}

// GetServices returns the registered services
func (s *BluetoothGattServer) GetServices() []*BluetoothGattService {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*BluetoothGattService(nil), s.services...)
}

// GetConnectedDevices returns the centrals currently connected to us
func (s *BluetoothGattServer) GetConnectedDevices() []*BluetoothDevice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*BluetoothDevice, 0, len(s.connectedDevices))
	for _, d := range s.connectedDevices {
		out = append(out, d)
	}
	return out
}

// SendResponse answers a read request delivered to the callback. A status
// other than GATT_SUCCESS is sent as an ATT error response and value is
// dropped. Returns false for unknown or already answered request ids.
// Matches: gattServer.sendResponse(device, requestId, status, offset, value)
func (s *BluetoothGattServer) SendResponse(device *BluetoothDevice, requestId int, status int, offset int, value []byte) bool {
	s.mu.Lock()
	req, ok := s.pending[requestId]
	if ok {
		delete(s.pending, requestId)
	}
	s.mu.Unlock()

	if !ok || device == nil || req.device != device.Address {
		logger.Trace(s.adapter.prefix(), "⚠️  No pending request %d", requestId)
		return false
	}

	rsp := &wire.GATTMessage{
		Type:               wire.MessageTypeResponse,
		RequestID:          req.msg.RequestID,
		Operation:          req.msg.Operation,
		ServiceUUID:        req.msg.ServiceUUID,
		CharacteristicUUID: req.msg.CharacteristicUUID,
		Offset:             req.msg.Offset,
		Status:             wire.StatusSuccess,
		Data:               value,
	}
	if status != GATT_SUCCESS {
		rsp.Status = wire.StatusError
		rsp.ErrorCode = att.CodeForStatus(status)
		rsp.Data = nil
	} else if conn := s.wire.GetConnection(device.Address); conn != nil && len(value) > conn.MTU()-1 {
		rsp.Data = value[:conn.MTU()-1]
	}

	if err := s.wire.SendGATTMessage(device.Address, rsp); err != nil {
		logger.Trace(s.adapter.prefix(), "⚠️  Failed to respond to %s: %v", shortHash(device.Address), err)
		return false
	}

	logger.Trace(s.adapter.prefix(), "📨 Sent response to device %s (reqId=%d, status=%d, offset=%d)",
		shortHash(device.Address), requestId, status, offset)
	return true
}

// Close closes the GATT server: services are removed and centrals disconnected
// Matches: gattServer.close()
func (s *BluetoothGattServer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.services = nil
	peers := make([]string, 0, len(s.connectedDevices))
	for addr := range s.connectedDevices {
		peers = append(peers, addr)
	}
	s.connectedDevices = make(map[string]*BluetoothDevice)
	s.pending = make(map[int]pendingRequest)
	s.mu.Unlock()

	s.adapter.mu.Lock()
	if s.adapter.gattServer == s {
		s.adapter.gattServer = nil
	}
	s.adapter.mu.Unlock()

	s.wire.WriteGATTTable(&wire.GATTTable{Services: []wire.GATTService{}})
	for _, peer := range peers {
		s.wire.Disconnect(peer)
	}
}

// buildGATTTable converts services to wire.GATTTable format
func (s *BluetoothGattServer) buildGATTTable() *wire.GATTTable {
	s.mu.Lock()
	defer s.mu.Unlock()

	gattTable := &wire.GATTTable{
		Services: make([]wire.GATTService, 0, len(s.services)),
	}

	for _, service := range s.services {
		gattService := wire.GATTService{
			UUID:            service.UUID,
			Type:            "primary",
			Characteristics: make([]wire.GATTCharacteristic, 0, len(service.Characteristics)),
		}
		if service.Type == SERVICE_TYPE_SECONDARY {
			gattService.Type = "secondary"
		}

		for _, char := range service.Characteristics {
			gattService.Characteristics = append(gattService.Characteristics, wire.GATTCharacteristic{
				UUID:       char.UUID,
				Properties: propertiesToStrings(char.Properties),
			})
		}

		gattTable.Services = append(gattTable.Services, gattService)
	}

	return gattTable
}

func (s *BluetoothGattServer) findCharacteristic(serviceUUID, charUUID string) *BluetoothGattCharacteristic {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, service := range s.services {
		if !strings.EqualFold(service.UUID, serviceUUID) {
			continue
		}
		if c := service.GetCharacteristic(charUUID); c != nil {
			return c
		}
	}
	return nil
}

func (s *BluetoothGattServer) onCentralConnected(address string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	device := &BluetoothDevice{Address: address, adapter: s.adapter}
	s.connectedDevices[address] = device
	s.mu.Unlock()

	logger.Debug(s.adapter.prefix(), "📱 Central %s connected", shortHash(address))
	s.callback.OnConnectionStateChange(device, GATT_SUCCESS, STATE_CONNECTED)
}

func (s *BluetoothGattServer) onCentralDisconnected(address string) {
	s.mu.Lock()
	device, ok := s.connectedDevices[address]
	delete(s.connectedDevices, address)
	for id, req := range s.pending {
		if req.device == address {
			delete(s.pending, id)
		}
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	logger.Debug(s.adapter.prefix(), "📱 Central %s disconnected", shortHash(address))
	s.callback.OnConnectionStateChange(device, GATT_SUCCESS, STATE_DISCONNECTED)
}

// handleCharacteristicMessage processes an incoming GATT request. Requests
// the server can reject on its own are answered here without involving the
// callback.
func (s *BluetoothGattServer) handleCharacteristicMessage(peerUUID string, msg *wire.GATTMessage) {
	if msg.Type != wire.MessageTypeRequest {
		return
	}

	reject := func(code uint8) {
		s.wire.SendGATTMessage(peerUUID, &wire.GATTMessage{
			Type:               wire.MessageTypeResponse,
			RequestID:          msg.RequestID,
			Operation:          msg.Operation,
			ServiceUUID:        msg.ServiceUUID,
			CharacteristicUUID: msg.CharacteristicUUID,
			Offset:             msg.Offset,
			Status:             wire.StatusError,
			ErrorCode:          code,
		})
	}

	if msg.Operation != wire.OperationRead {
		reject(att.ErrRequestNotSupported)
		return
	}

	char := s.findCharacteristic(msg.ServiceUUID, msg.CharacteristicUUID)
	if char == nil {
		logger.Trace(s.adapter.prefix(), "⚠️  Received request for unknown characteristic %s (service: %s)",
			msg.CharacteristicUUID, msg.ServiceUUID)
		reject(att.ErrAttributeNotFound)
		return
	}
	if char.Properties&PROPERTY_READ == 0 {
		reject(att.ErrReadNotPermitted)
		return
	}

	s.mu.Lock()
	device, ok := s.connectedDevices[peerUUID]
	if !ok {
		s.mu.Unlock()
		reject(att.ErrUnlikelyError)
		return
	}
	requestId := s.nextRequestID
	s.nextRequestID++
	s.pending[requestId] = pendingRequest{device: peerUUID, msg: msg}
	s.mu.Unlock()

	s.callback.OnCharacteristicReadRequest(device, requestId, msg.Offset, char)
}
