package wire

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/user/ble-peripheral/util"
	"github.com/user/ble-peripheral/wire/att"
)

const gattFile = "gatt.json"

// ReadGATTTable reads a device's published GATT table from its directory.
// A device that never published one has an empty table.
func ReadGATTTable(deviceUUID string) (*GATTTable, error) {
	gattPath := filepath.Join(util.GetDeviceCacheDir(deviceUUID), gattFile)

	data, err := os.ReadFile(gattPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &GATTTable{Services: []GATTService{}}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", gattFile, err)
	}

	var table GATTTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", gattFile, err)
	}

	return &table, nil
}

// WriteGATTTable publishes our GATT database for peers to discover
func (w *Wire) WriteGATTTable(table *GATTTable) error {
	return writeDeviceJSON(w.hardwareUUID, gattFile, table)
}

// DiscoverServices reads a connected peer's GATT table
func (w *Wire) DiscoverServices(peerUUID string) (*GATTTable, error) {
	if !w.IsConnected(peerUUID) {
		return nil, fmt.Errorf("%w to %s", ErrNotConnected, peerUUID)
	}
	time.Sleep(w.medium.discoveryDelay())
	return ReadGATTTable(peerUUID)
}

// ReadCharacteristic reads a characteristic on a connected peer starting at
// offset and waits for the response. A non-success response is returned as
// an *att.Error.
func (w *Wire) ReadCharacteristic(ctx context.Context, peerUUID, serviceUUID, charUUID string, offset int) ([]byte, error) {
	conn, ok := w.connection(peerUUID)
	if !ok {
		return nil, fmt.Errorf("%w to %s", ErrNotConnected, peerUUID)
	}

	opcode := att.ReadOpcode(offset)
	requestID := uuid.NewString()
	responseC, err := conn.tracker.StartRequest(opcode, requestID, 0)
	if err != nil {
		return nil, err
	}

	msg := &GATTMessage{
		Type:               MessageTypeRequest,
		RequestID:          requestID,
		Operation:          OperationRead,
		ServiceUUID:        serviceUUID,
		CharacteristicUUID: charUUID,
		Offset:             offset,
	}
	if err := w.SendGATTMessage(peerUUID, msg); err != nil {
		conn.tracker.CancelPending()
		return nil, err
	}

	select {
	case resp := <-responseC:
		if resp.Error != nil {
			return nil, resp.Error
		}
		rsp := resp.Packet.(*GATTMessage)
		if rsp.Status != StatusSuccess {
			return nil, att.NewError(rsp.ErrorCode, opcode)
		}
		return rsp.Data, nil
	case <-ctx.Done():
		conn.tracker.CancelPending()
		return nil, ctx.Err()
	}
}

// completeRequest matches a response from peerUUID with our pending request
func (w *Wire) completeRequest(peerUUID string, msg *GATTMessage) error {
	conn, ok := w.connection(peerUUID)
	if !ok {
		return fmt.Errorf("%w to %s", ErrNotConnected, peerUUID)
	}

	opcode := att.GetResponseOpcode(att.ReadOpcode(msg.Offset))
	if msg.Status != StatusSuccess {
		opcode = att.OpErrorResponse
	}
	return conn.tracker.CompleteRequest(opcode, msg.RequestID, msg)
}

func writeDeviceJSON(deviceUUID, name string, v interface{}) error {
	deviceDir := util.GetDeviceCacheDir(deviceUUID)
	if err := os.MkdirAll(deviceDir, 0755); err != nil {
		return fmt.Errorf("failed to create device directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	if err := os.WriteFile(filepath.Join(deviceDir, name), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
