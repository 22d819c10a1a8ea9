package att

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRequestPending is returned when a second request is started on a
// connection before the first one completes. ATT allows one at a time.
var ErrRequestPending = errors.New("ATT request already pending")

// RequestTracker manages the outstanding ATT request on one connection and
// matches it with its response. It also enforces the ATT transaction timeout.
type RequestTracker struct {
	mu             sync.Mutex
	pending        *PendingRequest
	defaultTimeout time.Duration
}

// PendingRequest represents a single outstanding ATT request
type PendingRequest struct {
	Opcode    uint8
	ID        string
	ResponseC chan Response
	timer     *time.Timer
	SentAt    time.Time
}

// Response represents an ATT response or error
type Response struct {
	Packet interface{} // may be nil on timeout
	Error  error
}

// NewRequestTracker creates a new request tracker
func NewRequestTracker(timeout time.Duration) *RequestTracker {
	if timeout == 0 {
		timeout = 30 * time.Second // ATT transaction timeout
	}
	return &RequestTracker{
		defaultTimeout: timeout,
	}
}

// StartRequest registers a new request and returns its response channel.
// The channel receives exactly one Response and is then closed.
func (rt *RequestTracker) StartRequest(opcode uint8, id string, timeout time.Duration) (<-chan Response, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.pending != nil {
		return nil, fmt.Errorf("%w (opcode 0x%02X, id %s)", ErrRequestPending, rt.pending.Opcode, rt.pending.ID)
	}

	if timeout == 0 {
		timeout = rt.defaultTimeout
	}

	p := &PendingRequest{
		Opcode:    opcode,
		ID:        id,
		ResponseC: make(chan Response, 1),
		SentAt:    time.Now(),
	}
	p.timer = time.AfterFunc(timeout, func() { rt.expire(p) })
	rt.pending = p

	return p.ResponseC, nil
}

func (rt *RequestTracker) expire(p *PendingRequest) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.pending != p {
		return // Already completed
	}
	rt.finish(Response{
		Error: fmt.Errorf("ATT request timeout: opcode 0x%02X, id %s", p.Opcode, p.ID),
	})
}

// finish delivers r to the pending request. Caller holds rt.mu.
func (rt *RequestTracker) finish(r Response) {
	p := rt.pending
	rt.pending = nil
	p.timer.Stop()
	p.ResponseC <- r
	close(p.ResponseC)
}

// CompleteRequest delivers a response to the pending request with the given id
func (rt *RequestTracker) CompleteRequest(responseOpcode uint8, id string, packet interface{}) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.pending == nil {
		return fmt.Errorf("no pending ATT request for response opcode 0x%02X", responseOpcode)
	}
	if rt.pending.ID != id {
		return fmt.Errorf("response %s does not match pending request %s", id, rt.pending.ID)
	}

	expected := GetResponseOpcode(rt.pending.Opcode)
	if responseOpcode != expected && responseOpcode != OpErrorResponse {
		return fmt.Errorf("unexpected response opcode 0x%02X for request 0x%02X (expected 0x%02X)",
			responseOpcode, rt.pending.Opcode, expected)
	}

	rt.finish(Response{Packet: packet})
	return nil
}

// HasPending returns true if there is a pending request
func (rt *RequestTracker) HasPending() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.pending != nil
}

// CancelPending fails any pending request (used during disconnection)
func (rt *RequestTracker) CancelPending() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.pending == nil {
		return
	}
	rt.finish(Response{
		Error: errors.New("ATT request cancelled (connection closed)"),
	})
}
