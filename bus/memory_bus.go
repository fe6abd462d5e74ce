package bus

import (
	"errors"
	"sync"

	"github.com/sat8bit/janus/message"
)

// ErrClosed is returned by Broadcast after Close.
var ErrClosed = errors.New("bus is closed")

const subscriberBuffer = 64

// MemoryBus is the in-process Bus. A subscriber that falls behind loses
// messages instead of stalling the turn loop.
type MemoryBus struct {
	mu          sync.RWMutex
	subscribers []chan *message.Message
	closed      bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Broadcast(m *message.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	for _, ch := range b.subscribers {
		select {
		case ch <- m:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscriber. After Close it returns a closed
// channel.
func (b *MemoryBus) Subscribe() <-chan *message.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *message.Message, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Close closes every subscriber channel. It is safe to call more than once.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}

var _ Bus = (*MemoryBus)(nil)
