package world

import (
	"slices"
	"strings"
)

const (
	// DefaultEntropy is the chaos level of a freshly created world.
	DefaultEntropy = 0.1

	// DefaultEntropyShift is applied when a generated outcome carries no shift.
	DefaultEntropyShift = 0.02
)

// Metrics holds the cumulative psychological signal of the player.
// Every axis stays within [0, 1].
type Metrics struct {
	Dominance   float64 `json:"dominance" yaml:"dominance"`
	Insight     float64 `json:"insight" yaml:"insight"`
	Instability float64 `json:"instability" yaml:"instability"`
}

// Clamp returns m with every axis forced into [0, 1].
func (m Metrics) Clamp() Metrics {
	return Metrics{
		Dominance:   clamp01(m.Dominance),
		Insight:     clamp01(m.Insight),
		Instability: clamp01(m.Instability),
	}
}

// State is the world of a single player. It is owned by one session and
// mutated at most once per completed turn.
type State struct {
	Depth        int
	Entropy      float64
	Metrics      Metrics
	Inventory    []Artifact
	Lore         []string
	ShadowEchoes []string
	LastContext  string
}

// New returns the default world.
func New() *State {
	return &State{
		Depth:   1,
		Entropy: DefaultEntropy,
	}
}

// Fresh reports whether the world has never produced a narrative beat.
func (s *State) Fresh() bool {
	return s.Depth == 1 && s.LastContext == ""
}

// Normalize restores the invariants of a decoded state.
func (s *State) Normalize() {
	if s.Depth < 1 {
		s.Depth = 1
	}
	if s.Entropy < 0 {
		s.Entropy = 0
	}
	s.Metrics = s.Metrics.Clamp()
	s.Inventory = slices.DeleteFunc(s.Inventory, func(a Artifact) bool {
		return strings.TrimSpace(a.Name) == ""
	})
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := *s
	c.Inventory = slices.Clone(s.Inventory)
	c.Lore = slices.Clone(s.Lore)
	c.ShadowEchoes = slices.Clone(s.ShadowEchoes)
	return &c
}

// ShiftEntropy adds delta to the entropy, flooring the result at zero.
func (s *State) ShiftEntropy(delta float64) {
	s.Entropy = max(0, s.Entropy+delta)
}

// AddArtifact appends a to the inventory.
func (s *State) AddArtifact(a Artifact) {
	s.Inventory = append(s.Inventory, a)
}

// RevealLore records a revealed fact and descends one level deeper.
func (s *State) RevealLore(fact string) {
	s.Lore = append(s.Lore, fact)
	s.Depth++
}

// RememberEcho keeps text as a shadow echo, evicting the oldest echoes so
// that at most limit remain. A non-positive limit disables the archive.
func (s *State) RememberEcho(text string, limit int) {
	if limit <= 0 {
		return
	}
	s.ShadowEchoes = append(s.ShadowEchoes, text)
	if over := len(s.ShadowEchoes) - limit; over > 0 {
		s.ShadowEchoes = slices.Clone(s.ShadowEchoes[over:])
	}
}

// RecentLore returns at most n of the latest lore entries.
func (s *State) RecentLore(n int) []string {
	if n <= 0 || len(s.Lore) == 0 {
		return nil
	}
	return s.Lore[max(0, len(s.Lore)-n):]
}

// Outcome is the state-relevant part of a successful generation.
type Outcome struct {
	Narrative    string
	Artifact     *Artifact
	Lore         string
	EntropyShift float64
}

// Apply folds a successful outcome into the state.
func (s *State) Apply(o Outcome) {
	if o.Artifact != nil && o.Artifact.Name != "" {
		s.AddArtifact(*o.Artifact)
	}
	if o.Lore != "" {
		s.RevealLore(o.Lore)
	}
	s.ShiftEntropy(o.EntropyShift)
	s.LastContext = o.Narrative
}

func clamp01(v float64) float64 {
	return min(1, max(0, v))
}
