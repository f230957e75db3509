package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	redisclient "crimewatch/internal/adapters/redis"
)

// RedisTestHelper gives each test its own key namespace on a shared Redis
type RedisTestHelper struct {
	client *redisclient.Client
	prefix string
}

// NewRedisTestHelper connects through the production adapter. Every key under
// Prefix() is deleted when the test ends. Skips when REDIS_HOST is unset.
func NewRedisTestHelper(t *testing.T) *RedisTestHelper {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := redisclient.NewClient(ctx, RedisConfigFromEnv(t))
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}

	h := &RedisTestHelper{client: client, prefix: fmt.Sprintf("test:%d", time.Now().UnixNano())}
	t.Cleanup(func() {
		h.purge()
		_ = client.Close()
	})
	return h
}

// Client returns the adapter client
func (h *RedisTestHelper) Client() *redisclient.Client {
	return h.client
}

// Prefix is the key namespace owned by this test
func (h *RedisTestHelper) Prefix() string {
	return h.prefix
}

func (h *RedisTestHelper) purge() {
	ctx := context.Background()
	rdb := h.client.Client()
	iter := rdb.Scan(ctx, 0, h.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		_ = rdb.Del(ctx, iter.Val()).Err()
	}
}
