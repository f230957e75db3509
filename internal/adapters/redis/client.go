package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"crimewatch/internal/adapters/config"
	"crimewatch/pkg/errors"
)

// Client wraps the Redis connection backing the artifact store and trainer lock
type Client struct {
	rdb *redis.Client
}

// NewClient connects and pings
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "failed to ping redis")
	}
	return &Client{rdb: rdb}, nil
}

// Client returns the underlying go-redis client
func (c *Client) Client() *redis.Client {
	return c.rdb
}

// Close closes the connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health pings Redis
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Lock is a held mutex; only the holder's token can release it
type Lock struct {
	key   string
	token string
}

// releaseScript deletes the key only while it still carries our token, so a
// holder whose TTL lapsed cannot release a lock someone else took since
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// AcquireLock takes "lock:<key>" for ttl. A nil Lock with a nil error means
// another process holds it.
func (c *Client) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	lock := &Lock{key: "lock:" + key, token: uuid.NewString()}
	ok, err := c.rdb.SetNX(ctx, lock.key, lock.token, ttl).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "acquire %s", lock.key)
	}
	if !ok {
		return nil, nil
	}
	return lock, nil
}

// ReleaseLock drops the lock if it is still ours
func (c *Client) ReleaseLock(ctx context.Context, lock *Lock) error {
	if lock == nil {
		return nil
	}
	return releaseScript.Run(ctx, c.rdb, []string{lock.key}, lock.token).Err()
}
