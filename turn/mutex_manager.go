package turn

import (
	"context"
	"fmt"
)

// MutexManager implements Manager with a one-slot channel, which unlike
// sync.Mutex lets a waiter give up when its context ends.
type MutexManager struct {
	turnCh chan struct{}
}

func NewMutexManager() *MutexManager {
	return &MutexManager{turnCh: make(chan struct{}, 1)}
}

// Acquire blocks until the turn is free or ctx is done.
func (m *MutexManager) Acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("failed to acquire turn: %w", ctx.Err())
	case m.turnCh <- struct{}{}:
		return nil
	}
}

// Release frees the turn. Releasing a free turn is a no-op.
func (m *MutexManager) Release() {
	select {
	case <-m.turnCh:
	default:
	}
}

var _ Manager = (*MutexManager)(nil)
