package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisShadow stores device state in a Redis hash per device.
type RedisShadow struct {
	Client redis.Cmdable
	// Prefix is prepended to the device ID. Defaults to "esp:shadow:".
	Prefix string
	// TTL is refreshed on every update. Defaults to 24 hours.
	TTL time.Duration
}

// Key returns the hash key of device id.
func (s *RedisShadow) Key(id string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "esp:shadow:"
	}
	return prefix + id
}

// Record sets fields on the device hash and refreshes its expiry.
func (s *RedisShadow) Record(ctx context.Context, id string, fields map[string]any) error {
	key := s.Key(id)
	if err := s.Client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}

	ttl := s.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := s.Client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("expire %s: %w", key, err)
	}
	return nil
}
