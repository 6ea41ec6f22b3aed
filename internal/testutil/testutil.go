// Package testutil provides testing utilities and helpers for the
// clusterview sync engine.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// GetTestRedisAddr returns the Redis address for tests and whether Redis is
// reachable there. REDIS_ADDR overrides the default local address.
func GetTestRedisAddr(t *testing.T) (string, bool) {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Logf("Redis not available at %s: %v", addr, err)
		return addr, false
	}
	return addr, true
}

// SetupTestRedis returns a connected Redis client or skips the test when no
// Redis is reachable. The client is closed on cleanup.
func SetupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr, ok := GetTestRedisAddr(t)
	if !ok {
		t.Skipf("skipping: Redis not available at %s", addr)
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 1})
	t.Cleanup(func() { _ = client.Close() })
	return client
}
