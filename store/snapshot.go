package store

import (
	"time"

	"github.com/sat8bit/janus/profile"
	"github.com/sat8bit/janus/world"
)

// snapshot is the on-disk shape of the world.
type snapshot struct {
	Depth        int              `json:"depth" yaml:"depth"`
	Entropy      float64          `json:"entropy" yaml:"entropy"`
	Inventory    []world.Artifact `json:"inventory" yaml:"inventory"`
	Lore         []string         `json:"lore" yaml:"lore"`
	Metrics      *world.Metrics   `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	PsychProfile profile.Label    `json:"psych_profile,omitempty" yaml:"psych_profile,omitempty"`
	LastContext  string           `json:"last_context" yaml:"last_context"`
	ShadowEchoes []string         `json:"shadow_echoes" yaml:"shadow_echoes"`
	Timestamp    string           `json:"timestamp" yaml:"timestamp"`
}

func fromState(s *world.State, now time.Time) snapshot {
	m := s.Metrics
	return snapshot{
		Depth:        s.Depth,
		Entropy:      s.Entropy,
		Inventory:    nonNil(s.Inventory),
		Lore:         nonNil(s.Lore),
		Metrics:      &m,
		PsychProfile: profile.LabelOf(m),
		LastContext:  s.LastContext,
		ShadowEchoes: nonNil(s.ShadowEchoes),
		Timestamp:    now.Format(time.RFC3339Nano),
	}
}

// toState converts a decoded snapshot. Files written before metrics existed
// only carry psych_profile; their metrics start at zero.
func (sn snapshot) toState() *world.State {
	s := world.New()
	s.Depth = sn.Depth
	s.Entropy = sn.Entropy
	s.Inventory = sn.Inventory
	s.Lore = sn.Lore
	if sn.Metrics != nil {
		s.Metrics = *sn.Metrics
	}
	s.LastContext = sn.LastContext
	s.ShadowEchoes = sn.ShadowEchoes
	s.Normalize()
	return s
}

// newSnapshot returns the decoding target. Fields missing from the file
// keep the defaults of a fresh world.
func newSnapshot() snapshot {
	d := world.New()
	return snapshot{Depth: d.Depth, Entropy: d.Entropy}
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
