package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisOption func(*redis.Options, *redisExtra)

type redisExtra struct {
	prefix      string
	pingTimeout time.Duration
}

func WithRedisHost(host string) RedisOption {
	return func(o *redis.Options, _ *redisExtra) {
		_, port, _ := net.SplitHostPort(o.Addr)
		o.Addr = net.JoinHostPort(host, port)
	}
}

func WithRedisPort(port int) RedisOption {
	return func(o *redis.Options, _ *redisExtra) {
		host, _, _ := net.SplitHostPort(o.Addr)
		o.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	}
}

func WithRedisPassword(password string) RedisOption {
	return func(o *redis.Options, _ *redisExtra) { o.Password = password }
}

func WithRedisDB(db int) RedisOption {
	return func(o *redis.Options, _ *redisExtra) { o.DB = db }
}

func WithRedisPool(size, minIdle int, timeout time.Duration) RedisOption {
	return func(o *redis.Options, _ *redisExtra) {
		if size > 0 {
			o.PoolSize = size
		}
		if minIdle >= 0 {
			o.MinIdleConns = minIdle
		}
		if timeout > 0 {
			o.PoolTimeout = timeout
		}
	}
}

// WithRedisPrefix namespaces every key, e.g. "demandcast".
func WithRedisPrefix(prefix string) RedisOption {
	return func(_ *redis.Options, x *redisExtra) { x.prefix = prefix }
}

// unlockScript deletes a lock only while it still carries the owner token,
// so an expired lock taken over by another replica is never released here.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCache implements Service on Redis. Its client is shared with the
// job queue.
type RedisCache struct {
	client *redis.Client
	prefix string
	owner  string
}

var _ Service = (*RedisCache)(nil)

// NewRedisCache connects and pings the server.
func NewRedisCache(opts ...RedisOption) (*RedisCache, error) {
	ro := &redis.Options{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  30 * time.Second,
	}
	extra := &redisExtra{prefix: "demandcast", pingTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(ro, extra)
	}

	client := redis.NewClient(ro)
	ctx, cancel := context.WithTimeout(context.Background(), extra.pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", ro.Addr, err)
	}
	return &RedisCache{client: client, prefix: extra.prefix, owner: uuid.NewString()}, nil
}

func (c *RedisCache) Client() *redis.Client {
	return c.client
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get: %w", err)
	}
	return decode(data, dest)
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.client.Unlink(ctx, full...).Err()
}

func (c *RedisCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.key(key), c.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock: %w", err)
	}
	return ok, nil
}

func (c *RedisCache) Unlock(ctx context.Context, key string) error {
	return unlockScript.Run(ctx, c.client, []string{c.key(key)}, c.owner).Err()
}
