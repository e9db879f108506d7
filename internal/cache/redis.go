package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// RedisConfig holds connection settings for RedisCache.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisCache is a Cache backed by Redis. Keys are namespaced by KeyPrefix.
type RedisCache struct {
	client    redis.UniversalClient
	keyPrefix string
	ownClient bool
}

// getOrSetScript returns the existing value, or stores ARGV[1] with TTL ARGV[2] ms and returns nil.
var getOrSetScript = redis.NewScript(`
	local current = redis.call("GET", KEYS[1])
	if current then
		return current
	end
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
	return false
`)

// NewRedisCache dials Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 2,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, oops.Code("CACHE_UNAVAILABLE").In("cache").With("addr", cfg.Addr).Wrap(err)
	}

	c := NewRedisCacheFromClient(client, cfg.KeyPrefix)
	c.ownClient = true
	return c, nil
}

// NewRedisCacheFromClient wraps an existing client. Close leaves the client open.
func NewRedisCacheFromClient(client redis.UniversalClient, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "wildsats:cache"
	}
	return &RedisCache{client: client, keyPrefix: keyPrefix}
}

func (c *RedisCache) key(k string) string {
	return c.keyPrefix + ":" + k
}

// Get retrieves a value by key.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, oops.Code("CACHE_READ").In("cache").With("key", key).Wrap(err)
	}
	return data, nil
}

// Set stores a value with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return oops.Code("CACHE_WRITE").In("cache").With("key", key).Wrap(err)
	}
	return nil
}

// SetIfAbsent stores value with SET NX.
func (c *RedisCache) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.key(key), value, ttl).Result()
	if err != nil {
		return false, oops.Code("CACHE_WRITE").In("cache").With("key", key).Wrap(err)
	}
	return ok, nil
}

// GetOrSet retrieves a value or computes and stores it if missing.
// Concurrent callers that lose the race receive the winner's value.
func (c *RedisCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	if value, err := c.Get(ctx, key); err == nil {
		return value, nil
	}

	value, err := fn()
	if err != nil {
		return nil, err
	}

	res, err := getOrSetScript.Run(ctx, c.client, []string{c.key(key)}, value, ttl.Milliseconds()).Text()
	if errors.Is(err, redis.Nil) {
		return value, nil
	}
	if err != nil {
		return nil, oops.Code("CACHE_WRITE").In("cache").With("key", key).Wrap(err)
	}
	return []byte(res), nil
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client when the cache created it.
func (c *RedisCache) Close() error {
	if !c.ownClient {
		return nil
	}
	return c.client.Close()
}

var (
	_ Cache = (*RedisCache)(nil)
	_ Cache = (*MemoryCache)(nil)
)
