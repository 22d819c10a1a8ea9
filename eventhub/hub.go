// Package eventhub broadcasts peripheral callbacks to WebSocket subscribers.
// Each callback becomes one JSON text message:
//
//	{"type":"central_connected","time":"...","device":{"address":"...","name":""}}
package eventhub

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/user/ble-peripheral/logger"
	"github.com/user/ble-peripheral/peripheral"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const prefix = "EventHub"

// writeTimeout keeps a slow subscriber from holding up a broadcast
const writeTimeout = 100 * time.Millisecond

// Event types
const (
	TypeAdvertisingStarted  = "advertising_started"
	TypeAdvertisingFailed   = "advertising_failed"
	TypeAdvertisingStopped  = "advertising_stopped"
	TypeCentralConnected    = "central_connected"
	TypeCentralDisconnected = "central_disconnected"
	TypeSnapshot            = "snapshot"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub is a peripheral.Callback fanning every callback out to WebSocket
// clients, then to an optional next callback.
type Hub struct {
	next     peripheral.Callback
	snapshot func() *structpb.Struct
	now      func() time.Time

	mu      sync.Mutex
	clients map[*websocket.Conn]*client
}

// client serializes writes to one subscriber. A websocket.Conn supports a
// single concurrent writer and callbacks arrive on several goroutines.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) write(msg *structpb.Struct) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeEvent(c.conn, msg)
}

// NewHub returns a hub that also forwards callbacks to next, which may be nil
func NewHub(next peripheral.Callback) *Hub {
	return &Hub{
		next:    next,
		now:     time.Now,
		clients: make(map[*websocket.Conn]*client),
	}
}

// SetSnapshotFunc sets where new subscribers and GET /state get the current
// peripheral state from, usually Manager.Snapshot
func (h *Hub) SetSnapshotFunc(f func() *structpb.Struct) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot = f
}

// Handler serves /events (WebSocket) and /state (JSON snapshot)
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", h.handleEvents)
	mux.HandleFunc("/state", h.handleState)
	return mux
}

func (h *Hub) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn(prefix, "Failed to upgrade connection: %v", err)
		return
	}

	if snap := h.currentSnapshot(); snap != nil {
		msg := h.event(TypeSnapshot)
		msg.Fields["state"] = structpb.NewStructValue(snap)
		if err := writeEvent(conn, msg); err != nil {
			conn.Close()
			return
		}
	}

	h.AddClient(conn)
	go h.readLoop(conn)
}

// readLoop drains client frames so close and ping frames are processed
func (h *Hub) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.RemoveClient(conn)
			return
		}
	}
}

func (h *Hub) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snap := h.currentSnapshot()
	if snap == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	b, err := protojson.Marshal(snap)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
}

func (h *Hub) currentSnapshot() *structpb.Struct {
	h.mu.Lock()
	f := h.snapshot
	h.mu.Unlock()
	if f == nil {
		return nil
	}
	return f()
}

func (h *Hub) AddClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; !ok {
		h.clients[conn] = &client{conn: conn}
	}
	logger.Debug(prefix, "Subscriber %s connected (%d total)", conn.RemoteAddr(), len(h.clients))
}

func (h *Hub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}

// ClientCount returns the number of subscribers
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends msg to every subscriber, dropping the ones that fail.
// It is safe to call from several goroutines at once.
func (h *Hub) Broadcast(msg *structpb.Struct) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	var failedMu sync.Mutex
	var failed []*websocket.Conn

	for _, c := range clients {
		wg.Add(1)
		go func(c *client) {
			defer wg.Done()
			if err := c.write(msg); err != nil {
				failedMu.Lock()
				failed = append(failed, c.conn)
				failedMu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	for _, conn := range failed {
		h.RemoveClient(conn)
	}
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]*client)
}

func writeEvent(conn *websocket.Conn, msg *structpb.Struct) error {
	b, err := protojson.Marshal(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (h *Hub) event(typ string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"type": structpb.NewStringValue(typ),
		"time": structpb.NewStringValue(h.now().UTC().Format(time.RFC3339Nano)),
	}}
}

func (h *Hub) deviceEvent(typ string, d peripheral.Device) *structpb.Struct {
	msg := h.event(typ)
	msg.Fields["device"] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"address": structpb.NewStringValue(d.Address),
		"name":    structpb.NewStringValue(d.Name),
	}})
	return msg
}
