// Package session owns a world for the lifetime of one process: it loads the
// snapshot, records chronicle entries and guarantees that pending entries
// and the latest snapshot are written exactly once on the way out.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sat8bit/janus/bus"
	"github.com/sat8bit/janus/chronicle"
	"github.com/sat8bit/janus/message"
	"github.com/sat8bit/janus/store"
	"github.com/sat8bit/janus/turn"
	"github.com/sat8bit/janus/world"
)

// closeTimeout bounds how long Close waits for a running turn.
const closeTimeout = 5 * time.Second

type Session struct {
	state *world.State
	store store.Store
	log   chronicle.Log
	bus   bus.Bus
	turns turn.Manager

	closeOnce sync.Once
	closeErr  error
}

// Open restores the world from st.
func Open(ctx context.Context, st store.Store, log chronicle.Log, b bus.Bus, turns turn.Manager) *Session {
	return &Session{
		state: st.Load(ctx),
		store: st,
		log:   log,
		bus:   b,
		turns: turns,
	}
}

// State returns the live world. Only the holder of the turn may mutate it.
func (s *Session) State() *world.State {
	return s.state
}

// Turns returns the manager guarding the world.
func (s *Session) Turns() turn.Manager {
	return s.turns
}

// Record appends an entry stamped with the current depth and metrics and
// broadcasts it. A failed write is logged; the entry stays pending in the
// chronicle and is retried with the next one.
func (s *Session) Record(ctx context.Context, source chronicle.Source, text string, meta *message.Message) {
	e := chronicle.NewEntry(source, text, s.state)
	if err := s.log.Append(ctx, e); err != nil {
		slog.WarnContext(ctx, "chronicle append failed", "source", source, "pending", s.log.Pending(), "error", err)
	}

	m := &message.Message{}
	if meta != nil {
		*m = *meta
	}
	m.Kind = kindOf(source)
	m.At = e.Timestamp
	m.Depth = e.Depth
	if m.Text == "" {
		m.Text = text
	}
	if err := s.bus.Broadcast(m); err != nil {
		slog.DebugContext(ctx, "broadcast dropped", "error", err)
	}
}

// Persist saves the snapshot. Failures are logged and returned so callers
// may report them, but they never abort a turn.
func (s *Session) Persist(ctx context.Context) error {
	if err := s.store.Save(ctx, s.state); err != nil {
		slog.WarnContext(ctx, "snapshot save failed", "error", err)
		return err
	}
	return nil
}

// Close flushes pending chronicle entries, saves the snapshot and closes the
// chronicle. Only the first call does any work; later calls return the
// same result.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.close(ctx)
	})
	return s.closeErr
}

func (s *Session) close(ctx context.Context) error {
	// The caller's context is usually already cancelled by a signal.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()

	if err := s.turns.Acquire(ctx); err != nil {
		slog.WarnContext(ctx, "closing while a turn is still running", "error", err)
	} else {
		defer s.turns.Release()
	}

	var errs []error
	if pending := s.log.Pending(); pending > 0 {
		text := fmt.Sprintf("CRASH_DUMP: %d unsaved entries recovered", pending)
		if err := s.log.Append(ctx, chronicle.NewEntry(chronicle.SourceSystem, text, s.state)); err != nil {
			errs = append(errs, fmt.Errorf("flush chronicle: %w", err))
		}
	}
	if err := s.store.Save(ctx, s.state); err != nil {
		errs = append(errs, fmt.Errorf("save snapshot: %w", err))
	}
	if err := s.log.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chronicle: %w", err))
	}
	return errors.Join(errs...)
}

func kindOf(source chronicle.Source) message.Kind {
	switch source {
	case chronicle.SourceUser:
		return message.KindUser
	case chronicle.SourceAI:
		return message.KindAI
	case chronicle.SourceLoot:
		return message.KindLoot
	case chronicle.SourceLore:
		return message.KindLore
	default:
		return message.KindSystem
	}
}
