package peripheral

import (
	"encoding/hex"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Snapshot describes the manager's current state as a protobuf Struct, for
// structured logs and the event feed.
func (m *Manager) Snapshot() *structpb.Struct {
	m.mu.Lock()
	state := m.state
	var central *Device
	if m.central != nil {
		d := *m.central
		central = &d
	}
	m.mu.Unlock()

	value := m.char.Value()
	fields := map[string]*structpb.Value{
		"state":               structpb.NewStringValue(state.String()),
		"name":                structpb.NewStringValue(m.cfg.Name),
		"service_uuid":        structpb.NewStringValue(m.service.UUID.String()),
		"characteristic_uuid": structpb.NewStringValue(m.char.UUID.String()),
		"value":               structpb.NewStringValue(string(value)),
		"value_hex":           structpb.NewStringValue(hex.EncodeToString(value)),
		"value_length":        structpb.NewNumberValue(float64(len(value))),
		"updater_running":     structpb.NewBoolValue(m.updater.Running()),
	}

	if central != nil {
		fields["central"] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"address": structpb.NewStringValue(central.Address),
			"name":    structpb.NewStringValue(central.Name),
		}})
	}

	if t := m.char.UpdatedAt(); !t.IsZero() {
		fields["updated_at"] = structpb.NewStringValue(t.UTC().Format(time.RFC3339Nano))
	}

	return &structpb.Struct{Fields: fields}
}
