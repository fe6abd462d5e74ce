// Package chronicle keeps the append-only, turn-by-turn record of a world.
// Entries that could not be written stay pending and are retried on the
// next append or flush.
package chronicle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sat8bit/janus/world"
)

// ErrWrite marks entries that could not be made durable. They remain
// pending in the log.
var ErrWrite = errors.New("chronicle write failed")

// Source tells who produced an entry.
type Source string

const (
	SourceSystem Source = "SYSTEM"
	SourceUser   Source = "USER"
	SourceAI     Source = "AI"
	SourceLoot   Source = "LOOT"
	SourceLore   Source = "LORE"
)

// Entry is a single chronicle record.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Source    Source         `json:"source"`
	Text      string         `json:"text"`
	Depth     int            `json:"depth"`
	Metrics   *world.Metrics `json:"metrics,omitempty"`
}

// timestampLayouts are tried in order. Older chronicles carry local times
// without a zone offset, with or without fractional seconds.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// UnmarshalJSON accepts zoneless legacy timestamps. A timestamp that matches
// no layout decodes as the zero time rather than failing the entry.
func (e *Entry) UnmarshalJSON(data []byte) error {
	type plain Entry
	var aux struct {
		*plain
		Timestamp string `json:"timestamp"`
	}
	aux.plain = (*plain)(e)
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.Timestamp = parseTimestamp(aux.Timestamp)
	return nil
}

func parseTimestamp(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		loc := time.Local
		if layout == time.RFC3339Nano {
			loc = time.UTC
		}
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}

// NewEntry stamps an entry with the current depth and metrics of s.
func NewEntry(source Source, text string, s *world.State) Entry {
	m := s.Metrics
	return Entry{
		Timestamp: time.Now(),
		Source:    source,
		Text:      text,
		Depth:     s.Depth,
		Metrics:   &m,
	}
}

// Log is a durable chronicle.
type Log interface {
	// Append queues e and writes every pending entry. A failed write keeps
	// the entries pending and returns an error wrapping ErrWrite.
	Append(ctx context.Context, e Entry) error

	// Flush retries the pending entries.
	Flush(ctx context.Context) error

	// Pending reports how many entries are not yet durable.
	Pending() int

	// Entries returns every durable entry in append order.
	Entries(ctx context.Context) ([]Entry, error)

	Close() error
}

// Backend names a Log implementation.
type Backend string

const (
	BackendJSON   Backend = "json"
	BackendSQLite Backend = "sqlite"
	BackendRedis  Backend = "redis"
)

// Open returns the log of the given backend. location is a file path, or a
// redis:// URL for the Redis backend.
func Open(backend Backend, location string) (Log, error) {
	switch Backend(strings.ToLower(string(backend))) {
	case BackendJSON, "":
		return NewJSONLog(location), nil
	case BackendSQLite:
		return OpenSQLite(location)
	case BackendRedis:
		return OpenRedis(location, DefaultRedisKey)
	default:
		return nil, fmt.Errorf("unknown chronicle backend %q", backend)
	}
}
