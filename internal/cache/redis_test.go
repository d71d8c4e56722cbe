package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Cache[int] = (*RedisCache[int])(nil)
var _ Cache[int] = (*LRUCache[int])(nil)

func TestNewRedisCache_PingFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedisCache[string](ctx, RedisOptions{Addr: "127.0.0.1:1"}); err == nil {
		t.Fatal("expected ping error against closed port")
	}
}

func TestRedisCache_UnreachableIsMiss(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	c := newRedisCache[string](rdb, "shiire:test:", time.Minute)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "k", "v")
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss when redis is unreachable")
	}
	if n := c.Size(ctx); n != 0 {
		t.Fatalf("Size = %d", n)
	}
	if got := c.key("k"); got != "shiire:test:k" {
		t.Fatalf("key = %q", got)
	}
}
