package repository_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wildsats-api/internal/repository"
	"wildsats-api/internal/repository/repositorytest"
)

func TestRedisPlayerRepository(t *testing.T) {
	repositorytest.Run(t, func(t *testing.T, opts ...repository.Option) repository.PlayerRepository {
		mr := miniredis.RunT(t)
		repo, err := repository.DialRedisPlayerRepository(context.Background(), repository.RedisConfig{Addr: mr.Addr()}, opts...)
		require.NoError(t, err)
		t.Cleanup(func() { _ = repo.Close() })
		return repo
	})
}

func TestRedisPlayerRepository_KeyLayout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := repository.NewRedisPlayerRepository(client, "game")
	ctx := context.Background()

	_, err := repo.UpsertLogin(ctx, "npub1abc", "Alice")
	require.NoError(t, err)
	_, err = repo.AppendInventoryItem(ctx, "npub1abc", "sword")
	require.NoError(t, err)

	assert.Equal(t, "Alice", mr.HGet("game:player:{npub1abc}", "displayName"))
	chars, err := mr.List("game:player:{npub1abc}:characters")
	require.NoError(t, err)
	assert.Equal(t, []string{"Dog"}, chars)
	items, err := mr.List("game:player:{npub1abc}:inventory")
	require.NoError(t, err)
	assert.Equal(t, []string{"sword"}, items)
	ok, err := mr.SIsMember("game:players", "npub1abc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDialRedisPlayerRepository_Unreachable(t *testing.T) {
	_, err := repository.DialRedisPlayerRepository(context.Background(), repository.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
