package chronicle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/sat8bit/janus/store"
)

// JSONLog keeps the chronicle as a single JSON list that is rewritten in
// full on every append.
type JSONLog struct {
	path    string
	mu      sync.Mutex
	pending []Entry
}

func NewJSONLog(path string) *JSONLog {
	return &JSONLog{path: path}
}

func (l *JSONLog) Append(ctx context.Context, e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append(l.pending, e)
	return l.flushLocked(ctx)
}

func (l *JSONLog) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) == 0 {
		return nil
	}
	return l.flushLocked(ctx)
}

func (l *JSONLog) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Entries decodes every element of the list. Elements that are not entries
// are kept in the file but skipped here.
func (l *JSONLog) Entries(ctx context.Context) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read chronicle %s: %w", l.path, err)
	}
	raw, err := decodeList(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode chronicle %s: %w", l.path, err)
	}
	entries := make([]Entry, 0, len(raw))
	for i, r := range raw {
		if bytes.Equal(bytes.TrimSpace(r), []byte("null")) {
			continue
		}
		var e Entry
		if err := json.Unmarshal(r, &e); err != nil {
			slog.WarnContext(ctx, "skipping undecodable chronicle element", "path", l.path, "index", i, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (l *JSONLog) Close() error {
	return nil
}

func (l *JSONLog) flushLocked(ctx context.Context) error {
	existing, err := l.readLocked(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	all := slices.Clip(existing)
	for _, e := range l.pending {
		b, err := marshalEntry(e)
		if err != nil {
			return fmt.Errorf("%w: encode %s: %w", ErrWrite, l.path, err)
		}
		all = append(all, b)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(all); err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrWrite, l.path, err)
	}
	if err := store.WriteFileAtomic(l.path, buf.Bytes()); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	l.pending = nil
	return nil
}

// readLocked returns the durable elements verbatim, so entries written by
// older versions survive the rewrite. Content that is not a list is treated
// as empty after being moved aside, so earlier history is never overwritten.
func (l *JSONLog) readLocked(ctx context.Context) ([]json.RawMessage, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read chronicle %s: %w", l.path, err)
	}
	raw, err := decodeList(data)
	if err == nil {
		return raw, nil
	}

	aside := fmt.Sprintf("%s.corrupt-%s", l.path, time.Now().Format("20060102-150405.000"))
	if rerr := os.Rename(l.path, aside); rerr != nil {
		return nil, fmt.Errorf("failed to move corrupt chronicle %s aside: %w", l.path, rerr)
	}
	slog.WarnContext(ctx, "chronicle corrupt, moved aside", "path", l.path, "aside", aside, "error", err)
	return nil, nil
}

func marshalEntry(e Entry) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, err
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}

func decodeList(data []byte) ([]json.RawMessage, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

var _ Log = (*JSONLog)(nil)
