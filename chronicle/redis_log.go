package chronicle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the list holding the chronicle.
const DefaultRedisKey = "janus:chronicle"

const redisDialTimeout = 5 * time.Second

// RedisLog keeps the chronicle as a Redis list of JSON entries.
type RedisLog struct {
	client  *redis.Client
	key     string
	mu      sync.Mutex
	pending []Entry
}

// OpenRedis connects to the server at rawURL (redis://host:port/db) and
// stores the chronicle under key.
func OpenRedis(rawURL, key string) (*RedisLog, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if key == "" {
		key = DefaultRedisKey
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisLog{client: client, key: key}, nil
}

func (l *RedisLog) Append(ctx context.Context, e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append(l.pending, e)
	return l.flushLocked(ctx)
}

func (l *RedisLog) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) == 0 {
		return nil
	}
	return l.flushLocked(ctx)
}

func (l *RedisLog) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Entries returns the decodable entries of the list. Foreign values are
// skipped.
func (l *RedisLog) Entries(ctx context.Context) ([]Entry, error) {
	raw, err := l.client.LRange(ctx, l.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read chronicle: %w", err)
	}
	entries := make([]Entry, 0, len(raw))
	for i, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			slog.WarnContext(ctx, "skipping undecodable chronicle entry", "key", l.key, "index", i, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (l *RedisLog) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}

// flushLocked pushes every pending entry in one MULTI block, so the list
// never holds half a flush.
func (l *RedisLog) flushLocked(ctx context.Context) error {
	values := make([]any, 0, len(l.pending))
	for _, e := range l.pending {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("%w: encode entry: %w", ErrWrite, err)
		}
		values = append(values, string(raw))
	}
	if _, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, l.key, values...)
		return nil
	}); err != nil {
		return fmt.Errorf("%w: push: %w", ErrWrite, err)
	}
	l.pending = nil
	return nil
}

var _ Log = (*RedisLog)(nil)
