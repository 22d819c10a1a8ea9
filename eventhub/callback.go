package eventhub

import (
	"github.com/user/ble-peripheral/peripheral"
	"google.golang.org/protobuf/types/known/structpb"
)

var _ peripheral.Callback = (*Hub)(nil)

func (h *Hub) OnAdvertisingStarted() {
	h.Broadcast(h.event(TypeAdvertisingStarted))
	if h.next != nil {
		h.next.OnAdvertisingStarted()
	}
}

func (h *Hub) OnAdvertisingFailed(errorCode int) {
	msg := h.event(TypeAdvertisingFailed)
	msg.Fields["code"] = structpb.NewNumberValue(float64(errorCode))
	msg.Fields["reason"] = structpb.NewStringValue(peripheral.AdvertiseErrorString(errorCode))
	h.Broadcast(msg)
	if h.next != nil {
		h.next.OnAdvertisingFailed(errorCode)
	}
}

func (h *Hub) OnAdvertisingStopped() {
	h.Broadcast(h.event(TypeAdvertisingStopped))
	if h.next != nil {
		h.next.OnAdvertisingStopped()
	}
}

func (h *Hub) OnCentralConnected(device peripheral.Device) {
	h.Broadcast(h.deviceEvent(TypeCentralConnected, device))
	if h.next != nil {
		h.next.OnCentralConnected(device)
	}
}

func (h *Hub) OnCentralDisconnected(device peripheral.Device) {
	h.Broadcast(h.deviceEvent(TypeCentralDisconnected, device))
	if h.next != nil {
		h.next.OnCentralDisconnected(device)
	}
}
