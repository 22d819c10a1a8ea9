package wire

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/user/ble-peripheral/logger"
	"github.com/user/ble-peripheral/wire/att"
)

// Wire is one device's attachment to a Medium. Connection changes and GATT
// requests addressed to the device are delivered in order on a single
// goroutine, so callbacks never run concurrently with each other.
type Wire struct {
	hardwareUUID string
	medium       *Medium

	mu          sync.RWMutex
	connections map[string]*Connection // peer UUID -> single connection
	advertising *AdvertisingData
	started     bool
	inbox       chan delivery
	stopReading chan struct{}
	readDone    chan struct{}

	// Message handler for incoming GATT requests
	gattHandler func(peerUUID string, msg *GATTMessage)

	// Connection callbacks
	connectCallback    func(peerUUID string, role ConnectionRole)
	disconnectCallback func(peerUUID string)
	handlerMu          sync.RWMutex
}

// Connection represents our end of a single BLE link
type Connection struct {
	remoteUUID  string
	role        ConnectionRole
	mtu         int
	connectedAt time.Time
	tracker     *att.RequestTracker
}

// RemoteUUID returns the peer's hardware UUID
func (c *Connection) RemoteUUID() string { return c.remoteUUID }

// Role returns our role in this connection
func (c *Connection) Role() ConnectionRole { return c.role }

// MTU returns the ATT MTU of the link
func (c *Connection) MTU() int { return c.mtu }

// ConnectedAt returns when the link was established
func (c *Connection) ConnectedAt() time.Time { return c.connectedAt }

type deliveryKind int

const (
	deliverConnect deliveryKind = iota
	deliverDisconnect
	deliverMessage
)

type delivery struct {
	kind     deliveryKind
	peerUUID string
	role     ConnectionRole
	msg      *GATTMessage
}

// NewWire creates a Wire for hardwareUUID on medium. It is not reachable by
// other devices until Start.
func NewWire(medium *Medium, hardwareUUID string) *Wire {
	return &Wire{
		hardwareUUID: hardwareUUID,
		medium:       medium,
		connections:  make(map[string]*Connection),
	}
}

// HardwareUUID returns the device's UUID on the medium
func (w *Wire) HardwareUUID() string {
	return w.hardwareUUID
}

// Medium returns the medium the wire is attached to
func (w *Wire) Medium() *Medium {
	return w.medium
}

func (w *Wire) prefix() string {
	return fmt.Sprintf("%s Wire", shortHash(w.hardwareUUID))
}

// Start attaches the wire to its medium and begins delivering events.
// Calling Start on a started wire is a no-op.
func (w *Wire) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return nil
	}
	if err := w.medium.attach(w); err != nil {
		return err
	}

	w.inbox = make(chan delivery, inboxSize)
	w.stopReading = make(chan struct{})
	w.readDone = make(chan struct{})
	w.started = true

	go w.readLoop(w.inbox, w.stopReading, w.readDone)

	logger.Debug(w.prefix(), "🔌 Attached to medium")
	return nil
}

// Stop disconnects every peer, stops advertising and detaches from the
// medium. It is idempotent.
func (w *Wire) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.advertising = nil
	peers := make([]string, 0, len(w.connections))
	for peer := range w.connections {
		peers = append(peers, peer)
	}
	stop, done := w.stopReading, w.readDone
	w.mu.Unlock()

	for _, peer := range peers {
		w.Disconnect(peer)
	}

	w.medium.detach(w)
	close(stop)
	<-done

	logger.Debug(w.prefix(), "🔌 Detached from medium")
}

// IsStarted reports whether the wire is attached
func (w *Wire) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// SetGATTMessageHandler sets the handler for incoming GATT requests
func (w *Wire) SetGATTMessageHandler(handler func(peerUUID string, msg *GATTMessage)) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.gattHandler = handler
}

// SetConnectCallback sets the callback for new connections
func (w *Wire) SetConnectCallback(callback func(peerUUID string, role ConnectionRole)) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.connectCallback = callback
}

// SetDisconnectCallback sets the callback for lost connections
func (w *Wire) SetDisconnectCallback(callback func(peerUUID string)) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.disconnectCallback = callback
}

// Connect establishes a connection to an advertising peer (we become Central)
func (w *Wire) Connect(peerUUID string) error {
	if !w.IsStarted() {
		return ErrStopped
	}
	if w.IsConnected(peerUUID) {
		return fmt.Errorf("%w to %s", ErrAlreadyConnected, peerUUID)
	}

	time.Sleep(w.medium.connectionDelay())

	peer, err := w.medium.lookup(peerUUID)
	if err != nil {
		return err
	}
	data, ok := peer.currentAdvertisement()
	if !ok || !data.IsConnectable {
		return fmt.Errorf("%w: %s", ErrNotAdvertising, peerUUID)
	}

	conn := newConnection(peerUUID, RoleCentral)

	w.mu.Lock()
	if _, exists := w.connections[peerUUID]; exists {
		w.mu.Unlock()
		return fmt.Errorf("%w to %s (concurrent connect)", ErrAlreadyConnected, peerUUID)
	}
	w.connections[peerUUID] = conn
	w.mu.Unlock()

	if err := peer.accept(w.hardwareUUID); err != nil {
		w.removeConnection(peerUUID)
		return fmt.Errorf("connect to %s: %w", peerUUID, err)
	}

	logger.Debug(w.prefix(), "🔗 Connected to %s as central", shortHash(peerUUID))
	w.enqueue(delivery{kind: deliverConnect, peerUUID: peerUUID, role: RoleCentral})
	return nil
}

// accept registers an incoming connection from central (we become Peripheral)
func (w *Wire) accept(centralUUID string) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return ErrStopped
	}
	if _, exists := w.connections[centralUUID]; exists {
		w.mu.Unlock()
		return fmt.Errorf("%w to %s", ErrAlreadyConnected, centralUUID)
	}
	w.connections[centralUUID] = newConnection(centralUUID, RolePeripheral)
	w.mu.Unlock()

	logger.Debug(w.prefix(), "🔗 Accepted connection from %s", shortHash(centralUUID))
	w.enqueue(delivery{kind: deliverConnect, peerUUID: centralUUID, role: RolePeripheral})
	return nil
}

// Disconnect tears down the link to peerUUID on both ends. Any outstanding
// request on the link fails.
func (w *Wire) Disconnect(peerUUID string) error {
	conn := w.removeConnection(peerUUID)
	if conn == nil {
		return fmt.Errorf("%w to %s", ErrNotConnected, peerUUID)
	}
	conn.tracker.CancelPending()
	w.enqueue(delivery{kind: deliverDisconnect, peerUUID: peerUUID})

	if peer, err := w.medium.lookup(peerUUID); err == nil {
		if pc := peer.removeConnection(w.hardwareUUID); pc != nil {
			pc.tracker.CancelPending()
			peer.enqueue(delivery{kind: deliverDisconnect, peerUUID: w.hardwareUUID})
		}
	}

	logger.Debug(w.prefix(), "🔗 Disconnected from %s", shortHash(peerUUID))
	return nil
}

// IsConnected reports whether a link to peerUUID exists
func (w *Wire) IsConnected(peerUUID string) bool {
	_, ok := w.connection(peerUUID)
	return ok
}

// GetConnection returns the link to peerUUID, or nil
func (w *Wire) GetConnection(peerUUID string) *Connection {
	conn, _ := w.connection(peerUUID)
	return conn
}

// ConnectedPeers returns the UUIDs of all connected peers, sorted
func (w *Wire) ConnectedPeers() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	peers := make([]string, 0, len(w.connections))
	for peer := range w.connections {
		peers = append(peers, peer)
	}
	sort.Strings(peers)
	return peers
}

// SendGATTMessage sends msg to a connected peer. Requests are queued on the
// peer's delivery goroutine; responses complete the peer's pending request.
func (w *Wire) SendGATTMessage(peerUUID string, msg *GATTMessage) error {
	if !w.IsConnected(peerUUID) {
		return fmt.Errorf("%w to %s", ErrNotConnected, peerUUID)
	}
	peer, err := w.medium.lookup(peerUUID)
	if err != nil {
		return err
	}

	m := msg.clone()
	m.SenderUUID = w.hardwareUUID

	time.Sleep(w.medium.deliveryDelay())

	if m.Type == MessageTypeResponse {
		return peer.completeRequest(w.hardwareUUID, m)
	}

	logger.Trace(w.prefix(), "📤 %s %s to %s (char %s, offset %d)",
		m.Type, m.Operation, shortHash(peerUUID), shortHash(m.CharacteristicUUID), m.Offset)
	peer.enqueue(delivery{kind: deliverMessage, peerUUID: w.hardwareUUID, msg: m})
	return nil
}

func newConnection(remoteUUID string, role ConnectionRole) *Connection {
	return &Connection{
		remoteUUID:  remoteUUID,
		role:        role,
		mtu:         DefaultMTU,
		connectedAt: time.Now(),
		tracker:     att.NewRequestTracker(DefaultRequestTimeout),
	}
}

func (w *Wire) connection(peerUUID string) (*Connection, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	conn, ok := w.connections[peerUUID]
	return conn, ok
}

func (w *Wire) removeConnection(peerUUID string) *Connection {
	w.mu.Lock()
	defer w.mu.Unlock()
	conn, ok := w.connections[peerUUID]
	if !ok {
		return nil
	}
	delete(w.connections, peerUUID)
	return conn
}

func (w *Wire) enqueue(d delivery) {
	w.mu.RLock()
	started, inbox, stop := w.started, w.inbox, w.stopReading
	w.mu.RUnlock()

	if !started {
		return
	}
	select {
	case inbox <- d:
	case <-stop:
	}
}

func (w *Wire) readLoop(inbox <-chan delivery, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case d := <-inbox:
			w.dispatch(d)
		}
	}
}

func (w *Wire) dispatch(d delivery) {
	w.handlerMu.RLock()
	gattHandler := w.gattHandler
	connectCb := w.connectCallback
	disconnectCb := w.disconnectCallback
	w.handlerMu.RUnlock()

	switch d.kind {
	case deliverConnect:
		if connectCb != nil {
			connectCb(d.peerUUID, d.role)
		}
	case deliverDisconnect:
		if disconnectCb != nil {
			disconnectCb(d.peerUUID)
		}
	case deliverMessage:
		if gattHandler != nil {
			gattHandler(d.peerUUID, d.msg)
		} else {
			logger.Trace(w.prefix(), "⚠️  Dropped %s from %s: no handler", d.msg.Type, shortHash(d.peerUUID))
		}
	}
}
