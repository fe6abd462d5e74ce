package renderer

import (
	"sync"

	"github.com/sat8bit/janus/bus"
	"github.com/sat8bit/janus/world"
)

// Renderer collects a session from the bus and writes it somewhere once the
// session is over.
type Renderer interface {
	// Render starts consuming the bus. The goroutine it starts is tracked
	// by wg and ends when the bus is closed.
	Render(b bus.Bus, wg *sync.WaitGroup) error

	// Finalize runs after wg is done, with the final world.
	Finalize(s *world.State) error
}
