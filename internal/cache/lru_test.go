package cache

import (
	"context"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLRU(size int, ttl time.Duration) (*LRUCache[string], *clock) {
	clk := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestLRU(2, time.Minute)

	c.Set(ctx, "a", "1")
	if v, ok := c.Get(ctx, "a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}
	if _, ok := c.Get(ctx, "missing"); ok {
		t.Fatal("unexpected hit")
	}
	c.Set(ctx, "a", "2")
	if v, _ := c.Get(ctx, "a"); v != "2" {
		t.Fatalf("overwrite failed, got %q", v)
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestLRU(2, time.Minute)
	var evicted []string
	c.OnEvict(func(key, _ string) { evicted = append(evicted, key) })

	c.Set(ctx, "a", "1")
	c.Set(ctx, "b", "2")
	c.Get(ctx, "a")
	c.Set(ctx, "c", "3")

	if _, ok := c.Get(ctx, "b"); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Fatal("a should still be cached")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("evicted = %v", evicted)
	}
	if c.Size(ctx) != 2 {
		t.Fatalf("Size = %d", c.Size(ctx))
	}
}

func TestLRUCache_TTL(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestLRU(10, time.Minute)

	c.Set(ctx, "a", "1")
	c.Set(ctx, "b", "2")
	clk.t = clk.t.Add(30 * time.Second)
	c.Set(ctx, "b", "3")
	clk.t = clk.t.Add(45 * time.Second)

	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatal("a should have expired")
	}
	if v, ok := c.Get(ctx, "b"); !ok || v != "3" {
		t.Fatalf("b should be fresh after refresh, got %q %v", v, ok)
	}

	clk.t = clk.t.Add(time.Hour)
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired = %d, want 1", n)
	}
	if c.Size(ctx) != 0 {
		t.Fatalf("Size = %d", c.Size(ctx))
	}
}

func TestLRUCache_EachAndPurge(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestLRU(10, time.Minute)
	c.Set(ctx, "a", "1")
	c.Set(ctx, "b", "2")

	var keys []string
	c.Each(func(k, _ string) { keys = append(keys, k) })
	if len(keys) != 2 || keys[0] != "b" {
		t.Fatalf("Each visited %v", keys)
	}

	c.Delete(ctx, "a")
	c.Purge(ctx)
	if c.Size(ctx) != 0 {
		t.Fatalf("Size after purge = %d", c.Size(ctx))
	}
}

func TestManager_CleansRegisteredCaches(t *testing.T) {
	c := NewLRUCache[int](10, time.Millisecond)
	c.Set(context.Background(), "x", 1)

	m := NewManager()
	m.Register("test", c)
	m.StartCleanup(5 * time.Millisecond)
	defer m.Stop()

	deadline := time.Now().Add(time.Second)
	for c.Size(context.Background()) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("entry was never cleaned")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
