package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	lru := NewLRU[int](2, 0)
	lru.Set("a", 1)
	lru.Set("b", 2)
	if _, ok := lru.Get("a"); !ok {
		t.Fatalf("expected a present")
	}
	lru.Set("c", 3)

	if _, ok := lru.Get("b"); ok {
		t.Fatalf("expected b evicted as least recently used")
	}
	if v, ok := lru.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a retained, got %v %v", v, ok)
	}
	if lru.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", lru.Len())
	}
}

func TestLRUExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	lru := NewLRU[string](4, time.Minute)
	lru.now = func() time.Time { return now }

	lru.Set("k", "v")
	if _, ok := lru.Get("k"); !ok {
		t.Fatalf("expected fresh entry")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := lru.Get("k"); ok {
		t.Fatalf("expected expired entry to miss")
	}
	if lru.Len() != 0 {
		t.Fatalf("expected expired entry removed")
	}
}

func TestLRUPurgeDropsOnlyExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	lru := NewLRU[int](8, time.Minute)
	lru.SetClock(func() time.Time { return now })

	lru.Set("old-1", 1)
	lru.Set("old-2", 2)
	lru.SetWithTTL("forever", 3, 0)
	now = now.Add(30 * time.Second)
	lru.Set("fresh", 4)
	now = now.Add(45 * time.Second)

	if removed := lru.Purge(); removed != 2 {
		t.Fatalf("expected 2 purged, got %d", removed)
	}
	if lru.Len() != 2 {
		t.Fatalf("expected 2 remaining, got %d", lru.Len())
	}
	if _, ok := lru.Get("forever"); !ok {
		t.Fatalf("expected entry without ttl to survive")
	}
}

func TestMemoryProviderSetNXAndCopies(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider(8)

	ok, err := p.SetNX(ctx, "lock", []byte("1"), time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first SetNX to succeed: %v %v", ok, err)
	}
	ok, err = p.SetNX(ctx, "lock", []byte("2"), time.Minute)
	if err != nil || ok {
		t.Fatalf("expected second SetNX to fail: %v %v", ok, err)
	}

	value := []byte("abc")
	if err := p.Set(ctx, "k", value, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	value[0] = 'z'
	got, err := p.Get(ctx, "k")
	if err != nil || string(got) != "abc" {
		t.Fatalf("expected stored copy, got %q %v", got, err)
	}

	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := p.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}
}

func TestMemoryProviderSetNXAfterExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(0, 0)
	p := NewMemoryProvider(8)
	p.SetClock(func() time.Time { return now })

	if ok, err := p.SetNX(ctx, "lock", []byte("1"), time.Minute); err != nil || !ok {
		t.Fatalf("expected first SetNX to succeed: %v %v", ok, err)
	}
	now = now.Add(30 * time.Second)
	if ok, _ := p.SetNX(ctx, "lock", []byte("2"), time.Minute); ok {
		t.Fatalf("live key must not be replaced")
	}
	now = now.Add(31 * time.Second)
	if ok, err := p.SetNX(ctx, "lock", []byte("3"), time.Minute); err != nil || !ok {
		t.Fatalf("expired key should be claimable: %v %v", ok, err)
	}
	got, err := p.Get(ctx, "lock")
	if err != nil || string(got) != "3" {
		t.Fatalf("expected new value, got %q %v", got, err)
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider(8)

	in := [][]float32{{0.1, 0.2}, {0.3}}
	if err := SetJSON(ctx, p, "vec", in, time.Minute); err != nil {
		t.Fatalf("set json: %v", err)
	}
	var out [][]float32
	if err := GetJSON(ctx, p, "vec", &out); err != nil {
		t.Fatalf("get json: %v", err)
	}
	if len(out) != 2 || out[0][1] != 0.2 {
		t.Fatalf("unexpected decoded value %v", out)
	}

	if err := GetJSON(ctx, NoopProvider{}, "vec", &out); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss from noop provider, got %v", err)
	}
}

func TestNewValkeyProviderRequiresAddr(t *testing.T) {
	if _, err := NewValkeyProvider(ValkeyConfig{}); err == nil {
		t.Fatalf("expected error for empty address")
	}
}
