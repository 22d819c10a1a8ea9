package gatthost

import (
	"sync"

	"github.com/user/ble-peripheral/peripheral"
)

type readResult struct {
	status peripheral.Status
	value  []byte
}

// pendingReads parks read handlers until the peripheral answers through
// SendResponse. Ids are never reused.
type pendingReads struct {
	mu      sync.Mutex
	nextID  int
	waiting map[int]pendingRead
}

type pendingRead struct {
	address string
	result  chan readResult
}

func newPendingReads() *pendingReads {
	return &pendingReads{nextID: 1, waiting: make(map[int]pendingRead)}
}

// begin registers a read from address and returns its id and result channel
func (p *pendingReads) begin(address string) (int, <-chan readResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	ch := make(chan readResult, 1)
	p.waiting[id] = pendingRead{address: address, result: ch}
	return id, ch
}

// complete delivers a result. It fails for unknown ids, ids already
// completed or abandoned, and a mismatched address.
func (p *pendingReads) complete(id int, address string, status peripheral.Status, value []byte) bool {
	p.mu.Lock()
	req, ok := p.waiting[id]
	if !ok || req.address != address {
		p.mu.Unlock()
		return false
	}
	delete(p.waiting, id)
	p.mu.Unlock()

	cp := make([]byte, len(value))
	copy(cp, value)
	req.result <- readResult{status: status, value: cp}
	return true
}

func (p *pendingReads) abandon(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.waiting, id)
}

// abandonAddress drops every read from a central that went away
func (p *pendingReads) abandonAddress(address string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for id, req := range p.waiting {
		if req.address == address {
			delete(p.waiting, id)
			n++
		}
	}
	return n
}

func (p *pendingReads) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiting)
}
