package peripheral

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/user/ble-peripheral/dataconv"
	"github.com/user/ble-peripheral/logger"
)

// ValueGenerator produces the random payloads written by the Updater.
// *dataconv.Generator implements it.
type ValueGenerator interface {
	IntN(n int) int
	RandomString(length int) (string, error)
}

// Updater rewrites a characteristic with a random string on a fixed interval
type Updater struct {
	char     *Characteristic
	interval time.Duration
	gen      ValueGenerator
	prefix   string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewUpdater creates an updater for char. A nil gen uses a randomly seeded
// dataconv.Generator.
func NewUpdater(char *Characteristic, interval time.Duration, gen ValueGenerator, prefix string) *Updater {
	if gen == nil {
		gen = dataconv.NewGenerator(nil)
	}
	return &Updater{
		char:     char,
		interval: interval,
		gen:      gen,
		prefix:   prefix,
	}
}

// Start runs the first tick immediately and then one per interval until ctx
// is cancelled or Stop is called. Calling Start on a running updater is a no-op.
func (u *Updater) Start(ctx context.Context) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	u.cancel = cancel
	u.done = make(chan struct{})

	go u.run(ctx, u.done)
}

func (u *Updater) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	u.tickAndLog()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.tickAndLog()
		}
	}
}

func (u *Updater) tickAndLog() {
	if err := u.Tick(); err != nil {
		logger.Error(u.prefix, "Error converting string to byte array: %v", err)
	}
}

// Tick performs one update. On error the previous value is retained.
func (u *Updater) Tick() error {
	length := u.gen.IntN(u.char.MaxLength)
	if length < 0 {
		return fmt.Errorf("negative value length %d", length)
	}

	s, err := u.gen.RandomString(length)
	if err != nil {
		return fmt.Errorf("generate value: %w", err)
	}

	if err := u.char.SetStringValue(s); err != nil {
		return fmt.Errorf("set value: %w", err)
	}

	logger.Trace(u.prefix, "Characteristic value updated (%d bytes)", len(s))
	return nil
}

// Stop halts the updater and waits for its goroutine to exit
func (u *Updater) Stop() {
	u.mu.Lock()
	cancel, done := u.cancel, u.done
	u.cancel, u.done = nil, nil
	u.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the updater goroutine is active
func (u *Updater) Running() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cancel != nil
}
