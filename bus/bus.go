package bus

import (
	"github.com/sat8bit/janus/message"
)

// Bus fans session events out to observers such as the transcript writer
// and the supervisor.
type Bus interface {
	Broadcast(m *message.Message) error
	Subscribe() <-chan *message.Message
	Close()
}
