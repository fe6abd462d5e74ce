package buslog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sat8bit/janus/bus"
	"github.com/sat8bit/janus/message"
)

// BusHandler is a slog.Handler that writes records to the wrapped handler
// and mirrors those at or above Level onto the bus, so warnings surface in
// the session transcript.
type BusHandler struct {
	bus   bus.Bus
	next  slog.Handler
	level slog.Leveler
	attrs []slog.Attr
}

// NewBusHandler creates a new BusHandler.
func NewBusHandler(b bus.Bus, next slog.Handler, level slog.Leveler) *BusHandler {
	return &BusHandler{bus: b, next: next, level: level}
}

func (h *BusHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level() || h.next.Enabled(ctx, level)
}

func (h *BusHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level.Level() {
		// A closed bus only means the session is over.
		_ = h.bus.Broadcast(&message.Message{
			Kind: message.KindLog,
			Text: h.format(r),
			At:   time.Now(),
		})
	}
	if h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *BusHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &BusHandler{
		bus:   h.bus,
		next:  h.next.WithAttrs(attrs),
		level: h.level,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *BusHandler) WithGroup(name string) slog.Handler {
	return &BusHandler{
		bus:   h.bus,
		next:  h.next.WithGroup(name),
		level: h.level,
		attrs: h.attrs,
	}
}

func (h *BusHandler) format(r slog.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", r.Level, r.Message)
	write := func(a slog.Attr) bool {
		fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value)
		return true
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(write)
	return sb.String()
}

var _ slog.Handler = (*BusHandler)(nil)
