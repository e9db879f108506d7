package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wildsats-api/internal/repository"
	"wildsats-api/internal/repository/repositorytest"
)

func TestMemoryPlayerRepository(t *testing.T) {
	repositorytest.Run(t, func(t *testing.T, opts ...repository.Option) repository.PlayerRepository {
		return repository.NewMemoryPlayerRepository(opts...)
	})
}

func TestWithDefaultCharacter(t *testing.T) {
	repo := repository.NewMemoryPlayerRepository(repository.WithDefaultCharacter("Cat"))

	p, err := repo.UpsertLogin(context.Background(), "npub1x", "Alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"Cat"}, p.Characters)

	blank := repository.NewMemoryPlayerRepository(repository.WithDefaultCharacter(""))
	p, err = blank.UpsertLogin(context.Background(), "npub1x", "Alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"Dog"}, p.Characters, "blank default keeps Dog")
}
