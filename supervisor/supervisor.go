package supervisor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sat8bit/janus/bus"
	"github.com/sat8bit/janus/message"
	"github.com/sat8bit/janus/turn"
)

// Supervisor counts completed turns and cancels the session once the cap is
// reached. A cap of zero means no limit.
type Supervisor struct {
	maxTurns   int
	turnCount  int
	bus        bus.Bus
	cancelFunc context.CancelFunc
	mu         sync.Mutex
	done       chan struct{}
}

func NewSupervisor(maxTurns int, b bus.Bus, cancelFunc context.CancelFunc) *Supervisor {
	return &Supervisor{
		maxTurns:   maxTurns,
		bus:        b,
		cancelFunc: cancelFunc,
		done:       make(chan struct{}),
	}
}

// Start begins watching the bus. The returned channel is closed when the
// supervisor stops watching.
func (s *Supervisor) Start() <-chan struct{} {
	ch := s.bus.Subscribe()

	go func() {
		defer close(s.done)
		for msg := range ch {
			// only a narrated answer completes a turn
			if msg.Kind != message.KindAI {
				continue
			}

			s.mu.Lock()
			s.turnCount++
			reached := s.maxTurns > 0 && s.turnCount >= s.maxTurns
			count := s.turnCount
			s.mu.Unlock()

			if reached {
				slog.Info("turn limit reached", "turns", count)
				s.cancelFunc()
				return
			}
		}
	}()
	return s.done
}

func (s *Supervisor) CurrentTurn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnCount
}

func (s *Supervisor) MaxTurns() int {
	return s.maxTurns
}

var _ turn.Provider = (*Supervisor)(nil)
