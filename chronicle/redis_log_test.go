package chronicle

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/sat8bit/janus/world"
)

func TestRedisLogKeepsBufferWhileServerIsDown(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	log, err := OpenRedis("redis://"+mr.Addr(), "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer log.Close()

	mr.Close()
	err = log.Append(ctx, NewEntry(SourceUser, "USER: бежать", world.New()))
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", err)
	}
	if log.Pending() != 1 {
		t.Fatalf("expected one pending entry, got %d", log.Pending())
	}

	if err := mr.Restart(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := log.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	entries, err := log.Entries(ctx)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Text != "USER: бежать" || log.Pending() != 0 {
		t.Fatalf("unexpected entries %+v pending %d", entries, log.Pending())
	}
	if got, _ := mr.List(DefaultRedisKey); len(got) != 1 {
		t.Fatalf("expected the default key to hold one value, got %v", got)
	}
}

func TestRedisLogSkipsForeignValues(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	if _, err := mr.Push("k", "not json"); err != nil {
		t.Fatal(err)
	}
	log, err := Open(BackendRedis, "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer log.Close()
	rl, ok := log.(*RedisLog)
	if !ok {
		t.Fatalf("expected *RedisLog, got %T", log)
	}
	rl.key = "k"

	if err := rl.Append(ctx, NewEntry(SourceAI, "JANUS: x", world.New())); err != nil {
		t.Fatalf("append: %v", err)
	}
	entries, err := rl.Entries(ctx)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Source != SourceAI {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestOpenRedisRejectsBadURL(t *testing.T) {
	if _, err := OpenRedis("", ""); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := OpenRedis("http://nope", ""); err == nil {
		t.Fatal("expected error for non-redis url")
	}
}
