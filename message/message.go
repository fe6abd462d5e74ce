package message

import (
	"time"

	"github.com/sat8bit/janus/archetype"
)

type Kind string

const (
	KindSystem Kind = "system"
	KindUser   Kind = "user"
	KindAI     Kind = "ai"
	KindLoot   Kind = "loot"
	KindLore   Kind = "lore"
	KindError  Kind = "error"
	KindLog    Kind = "log"
	KindPhase  Kind = "phase"
)

// Message is one event of a session, broadcast to every subscriber.
type Message struct {
	Kind      Kind
	Text      string
	At        time.Time
	Depth     int
	Archetype *archetype.Archetype // narrator of AI messages
	Meta      map[string]string
}

// IsNarrative reports whether the message belongs in a transcript.
func (m *Message) IsNarrative() bool {
	return m.Kind != KindPhase
}
