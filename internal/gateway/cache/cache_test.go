package cache

import (
	"context"
	"testing"
	"time"
)

type payload struct {
	Symbol string  `json:"symbol"`
	Score  float64 `json:"score"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	var got payload
	if ok, err := c.Get(ctx, "k", &got); ok || err != nil {
		t.Fatalf("miss = %v, %v", ok, err)
	}
	if err := c.Set(ctx, "k", payload{"BTCUSDT", 4}, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ok, err := c.Get(ctx, "k", &got); !ok || err != nil || got.Symbol != "BTCUSDT" || got.Score != 4 {
		t.Fatalf("hit = %v, %v, %+v", ok, err, got)
	}
	_ = c.Delete(ctx, "k")
	if ok, _ := c.Get(ctx, "k", &got); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestMemoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }
	_ = c.Set(ctx, "k", payload{Symbol: "ETHUSDT"}, time.Minute)
	var got payload
	if ok, _ := c.Get(ctx, "k", &got); !ok {
		t.Fatalf("expected hit before ttl")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := c.Get(ctx, "k", &got); ok {
		t.Fatalf("expected miss after ttl")
	}
}

func TestRedisCacheImplementsCache(t *testing.T) {
	var _ Cache = NewRedisCache(RedisConfig{Addr: "127.0.0.1:0"})
	var _ Cache = NewMemoryCache()
}
