package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestGenerateKey(t *testing.T) {
	c := NewNop("storefront")
	if got := c.GenerateKey("cart", "user:42"); got != "storefront:cart:user:42" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestNopNeverHits(t *testing.T) {
	ctx := context.Background()
	c := NewNop("storefront")
	if err := c.Set(ctx, "k", map[string]int{"a": 1}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var out map[string]int
	found, err := c.Get(ctx, "k", &out)
	if err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}
}

func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, closeFn := NewRedis(addr, "storefront-test")
	defer closeFn()
	if err := Ping(ctx, c); err != nil {
		t.Fatalf("ping: %v", err)
	}

	key := c.GenerateKey("cart", "guest:roundtrip")
	type payload struct {
		CartID string `json:"cartId"`
	}
	if err := c.Set(ctx, key, payload{CartID: "c1"}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got payload
	found, err := c.Get(ctx, key, &got)
	if err != nil || !found || got.CartID != "c1" {
		t.Fatalf("unexpected get result found=%v err=%v got=%+v", found, err, got)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	found, err = c.Get(ctx, key, &got)
	if err != nil || found {
		t.Fatalf("expected miss after delete, found=%v err=%v", found, err)
	}
}
