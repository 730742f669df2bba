package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// stubRedis implements the two commands RedisShadow issues. Any other call
// panics on the nil embedded interface.
type stubRedis struct {
	redis.Cmdable

	hsetKey    string
	hsetValues []any
	hsetErr    error
	expireKey  string
	expireTTL  time.Duration
}

func (s *stubRedis) HSet(ctx context.Context, key string, values ...any) *redis.IntCmd {
	s.hsetKey = key
	s.hsetValues = values
	return redis.NewIntResult(int64(len(values)), s.hsetErr)
}

func (s *stubRedis) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	s.expireKey = key
	s.expireTTL = expiration
	return redis.NewBoolResult(true, nil)
}

func TestRedisShadowRecord(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		client := &stubRedis{}
		shadow := &RedisShadow{Client: client}

		fields := map[string]any{"rx_bytes": 5}
		if err := shadow.Record(context.Background(), "lab-1", fields); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.hsetKey != "esp:shadow:lab-1" || client.expireKey != "esp:shadow:lab-1" {
			t.Errorf("unexpected keys: %q, %q", client.hsetKey, client.expireKey)
		}
		if client.expireTTL != 24*time.Hour {
			t.Errorf("unexpected ttl: %v", client.expireTTL)
		}
		if len(client.hsetValues) != 1 {
			t.Errorf("expected fields passed as one map, got %v", client.hsetValues)
		}
	})

	t.Run("Custom prefix and TTL", func(t *testing.T) {
		client := &stubRedis{}
		shadow := &RedisShadow{Client: client, Prefix: "dev:", TTL: time.Minute}

		if err := shadow.Record(context.Background(), "x", map[string]any{"a": 1}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.hsetKey != "dev:x" || client.expireTTL != time.Minute {
			t.Errorf("unexpected key %q or ttl %v", client.hsetKey, client.expireTTL)
		}
	})

	t.Run("HSet failure skips expire", func(t *testing.T) {
		hsetErr := errors.New("connection refused")
		client := &stubRedis{hsetErr: hsetErr}
		shadow := &RedisShadow{Client: client}

		err := shadow.Record(context.Background(), "lab-1", map[string]any{"a": 1})
		if !errors.Is(err, hsetErr) {
			t.Errorf("expected hset error, got: %v", err)
		}
		if client.expireKey != "" {
			t.Error("expire should not be issued after a failed hset")
		}
	})
}
