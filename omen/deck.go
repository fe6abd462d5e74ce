package omen

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
)

// DefaultChance is how often a turn draws an omen.
const DefaultChance = 0.2

// Deck holds fetched omens and hands one out now and then. A nil Deck
// never draws.
type Deck struct {
	mu     sync.Mutex
	omens  []*Omen
	rng    *rand.Rand
	chance float64
}

func NewDeck(rng *rand.Rand, chance float64) *Deck {
	return &Deck{rng: rng, chance: chance}
}

// Fill replaces the deck with whatever f returns. A failed fetch leaves
// the deck as it was.
func (d *Deck) Fill(ctx context.Context, f Fetcher) error {
	omens, err := f.Fetch(ctx)
	if err != nil {
		slog.WarnContext(ctx, "omen fetch failed", "error", err)
		return err
	}
	d.mu.Lock()
	d.omens = omens
	d.mu.Unlock()
	slog.DebugContext(ctx, "omens loaded", "count", len(omens))
	return nil
}

func (d *Deck) Len() int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.omens)
}

// Draw returns an omen as prompt text, or "" when the deck is empty or the
// roll misses.
func (d *Deck) Draw() string {
	if d == nil {
		return ""
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.omens) == 0 || d.rng.Float64() >= d.chance {
		return ""
	}
	return d.omens[d.rng.Intn(len(d.omens))].String()
}
