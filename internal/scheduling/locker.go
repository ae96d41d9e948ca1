package scheduling

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalLocker is an in-process Locker keyed by vet id. It only protects a
// single api-server instance; use the Redis locker when running several.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*vetSlot
	wait  time.Duration
}

type vetSlot struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker returns a locker whose callers give up with ErrVetBusy after
// waiting wait for the vet. A zero wait blocks until ctx is done.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{
		slots: make(map[uuid.UUID]*vetSlot),
		wait:  wait,
	}
}

func (l *LocalLocker) WithVetLock(ctx context.Context, vetID uuid.UUID, fn func(ctx context.Context) error) error {
	slot := l.acquireRef(vetID)
	defer l.releaseRef(vetID, slot)

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case slot.sem <- struct{}{}:
	case <-waitCtx.Done():
		return ErrVetBusy
	}
	defer func() { <-slot.sem }()

	return fn(ctx)
}

func (l *LocalLocker) acquireRef(vetID uuid.UUID) *vetSlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[vetID]
	if !ok {
		slot = &vetSlot{sem: make(chan struct{}, 1)}
		l.slots[vetID] = slot
	}
	slot.refs++
	return slot
}

func (l *LocalLocker) releaseRef(vetID uuid.UUID, slot *vetSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, vetID)
	}
}
