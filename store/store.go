package store

import (
	"context"
	"errors"

	"github.com/sat8bit/janus/world"
)

// ErrWrite marks a snapshot that could not be persisted. The turn loop
// logs it and carries on.
var ErrWrite = errors.New("snapshot write failed")

// Store keeps the latest world snapshot.
type Store interface {
	// Load returns the persisted world, or a fresh one when nothing usable
	// is stored. It never fails.
	Load(ctx context.Context) *world.State

	// Save overwrites the snapshot with s.
	Save(ctx context.Context, s *world.State) error
}
