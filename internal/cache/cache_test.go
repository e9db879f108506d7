package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type CacheSuite struct {
	suite.Suite
	newCache func(t *testing.T) (Cache, func(time.Duration))
	cache    Cache
	advance  func(time.Duration)
}

func (s *CacheSuite) SetupTest() {
	s.cache, s.advance = s.newCache(s.T())
}

func (s *CacheSuite) TearDownTest() {
	s.Require().NoError(s.cache.Close())
}

func (s *CacheSuite) TestGetMiss() {
	_, err := s.cache.Get(context.Background(), "missing")
	s.ErrorIs(err, ErrCacheMiss)
}

func (s *CacheSuite) TestSetGet() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, "k", []byte("v"), time.Minute))

	got, err := s.cache.Get(ctx, "k")
	s.Require().NoError(err)
	s.Equal([]byte("v"), got)
}

func (s *CacheSuite) TestExpiry() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, "short", []byte("v"), 20*time.Millisecond))
	s.advance(50 * time.Millisecond)

	_, err := s.cache.Get(ctx, "short")
	s.ErrorIs(err, ErrCacheMiss)
}

func (s *CacheSuite) TestSetIfAbsent() {
	ctx := context.Background()

	first, err := s.cache.SetIfAbsent(ctx, "event", []byte("1"), time.Minute)
	s.Require().NoError(err)
	s.True(first)

	second, err := s.cache.SetIfAbsent(ctx, "event", []byte("2"), time.Minute)
	s.Require().NoError(err)
	s.False(second)

	got, err := s.cache.Get(ctx, "event")
	s.Require().NoError(err)
	s.Equal([]byte("1"), got)
}

func (s *CacheSuite) TestGetOrSet() {
	ctx := context.Background()
	calls := 0
	fn := func() ([]byte, error) {
		calls++
		return []byte("computed"), nil
	}

	v1, err := s.cache.GetOrSet(ctx, "lazy", time.Minute, fn)
	s.Require().NoError(err)
	v2, err := s.cache.GetOrSet(ctx, "lazy", time.Minute, fn)
	s.Require().NoError(err)

	s.Equal([]byte("computed"), v1)
	s.Equal(v1, v2)
	s.Equal(1, calls)

	boom := errors.New("boom")
	_, err = s.cache.GetOrSet(ctx, "failing", time.Minute, func() ([]byte, error) { return nil, boom })
	s.ErrorIs(err, boom)
}

func (s *CacheSuite) TestPing() {
	s.NoError(s.cache.Ping(context.Background()))
}

func TestMemoryCache(t *testing.T) {
	suite.Run(t, &CacheSuite{newCache: func(t *testing.T) (Cache, func(time.Duration)) {
		return NewMemoryCache(), time.Sleep
	}})
}

func TestRedisCache(t *testing.T) {
	suite.Run(t, &CacheSuite{newCache: func(t *testing.T) (Cache, func(time.Duration)) {
		mr := miniredis.RunT(t)
		c, err := NewRedisCache(context.Background(), RedisConfig{Addr: mr.Addr()})
		require.NoError(t, err)
		return c, mr.FastForward
	}})
}

func TestRedisCache_KeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedisCacheFromClient(client, "test")
	require.NoError(t, c.Set(context.Background(), "a", []byte("1"), 0))

	assert.True(t, mr.Exists("test:a"))
	require.NoError(t, c.Close())
	assert.NoError(t, client.Ping(context.Background()).Err(), "borrowed client stays open")
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestMemoryCache_SetIfAbsentAfterExpiry(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	ok, _ := c.SetIfAbsent(ctx, "k", []byte("a"), time.Millisecond)
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)

	ok, err := c.SetIfAbsent(ctx, "k", []byte("b"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())
}
