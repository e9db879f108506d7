// Package repositorytest is a conformance suite every PlayerRepository must pass.
package repositorytest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"wildsats-api/internal/clock"
	"wildsats-api/internal/model"
	"wildsats-api/internal/repository"
)

// Factory opens a repository configured with opts. It registers its own cleanup.
type Factory func(t *testing.T, opts ...repository.Option) repository.PlayerRepository

// Run executes the suite against the repositories produced by factory.
func Run(t *testing.T, factory Factory) {
	suite.Run(t, &playerSuite{factory: factory})
}

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type playerSuite struct {
	suite.Suite
	factory Factory
	clock   *clock.Manual
	repo    repository.PlayerRepository
	ctx     context.Context
}

func (s *playerSuite) SetupTest() {
	s.clock = clock.NewManual(epoch)
	s.repo = s.factory(s.T(), repository.WithClock(s.clock))
	s.ctx = context.Background()
}

// identity returns a fresh key so backends shared across tests stay isolated.
func (s *playerSuite) identity() string {
	return "npub-test-" + uuid.NewString()
}

func (s *playerSuite) login(identity, name string) *model.PlayerRecord {
	p, err := s.repo.UpsertLogin(s.ctx, identity, name)
	s.Require().NoError(err)
	return p
}

func (s *playerSuite) TestFirstLoginCreatesDefaultRecord() {
	id := s.identity()

	p := s.login(id, "Alice")

	s.Equal(id, p.Identity)
	s.Equal("Alice", p.DisplayName)
	s.Equal([]string{model.DefaultCharacter}, p.Characters)
	s.Empty(p.Inventory)
	s.NotNil(p.Inventory)
	s.True(p.CreatedAt.Equal(epoch), "createdAt %v", p.CreatedAt)
	s.True(p.LastLogin.Equal(epoch), "lastLogin %v", p.LastLogin)
}

func (s *playerSuite) TestLoginOnlyTouchesNameAndLastLogin() {
	id := s.identity()
	s.login(id, "Alice")
	_, _, err := s.repo.AddCharacterUnique(s.ctx, id, "Cat")
	s.Require().NoError(err)
	_, err = s.repo.AppendInventoryItem(s.ctx, id, "sword")
	s.Require().NoError(err)

	s.clock.Advance(time.Hour)
	p := s.login(id, "Bob")

	s.Equal("Bob", p.DisplayName)
	s.Equal([]string{"Dog", "Cat"}, p.Characters)
	s.Equal([]string{"sword"}, p.Inventory)
	s.True(p.CreatedAt.Equal(epoch))
	s.True(p.LastLogin.Equal(epoch.Add(time.Hour)))
}

func (s *playerSuite) TestLastLoginNeverMovesBackwards() {
	id := s.identity()
	s.login(id, "Alice")

	s.clock.Set(epoch.Add(-24 * time.Hour))
	p := s.login(id, "Alice")

	s.True(p.LastLogin.Equal(epoch), "lastLogin went back to %v", p.LastLogin)
	s.False(p.LastLogin.Before(p.CreatedAt))
}

func (s *playerSuite) TestAddCharacterUniqueIsIdempotent() {
	id := s.identity()
	s.login(id, "Alice")

	p, added, err := s.repo.AddCharacterUnique(s.ctx, id, "Cat")
	s.Require().NoError(err)
	s.True(added)
	s.Equal([]string{"Dog", "Cat"}, p.Characters)

	p, added, err = s.repo.AddCharacterUnique(s.ctx, id, "Cat")
	s.Require().NoError(err)
	s.False(added)
	s.Equal([]string{"Dog", "Cat"}, p.Characters)

	_, added, err = s.repo.AddCharacterUnique(s.ctx, id, "Dog")
	s.Require().NoError(err)
	s.False(added, "default character is already owned")
}

func (s *playerSuite) TestCharacterNamesAreCaseSensitive() {
	id := s.identity()
	s.login(id, "Alice")

	_, added, err := s.repo.AddCharacterUnique(s.ctx, id, "dog")
	s.Require().NoError(err)
	s.True(added)

	chars, err := s.repo.GetCharacters(s.ctx, id)
	s.Require().NoError(err)
	s.Equal([]string{"Dog", "dog"}, chars)
}

func (s *playerSuite) TestAppendInventoryKeepsDuplicates() {
	id := s.identity()
	s.login(id, "Alice")

	_, err := s.repo.AppendInventoryItem(s.ctx, id, "sword")
	s.Require().NoError(err)
	p, err := s.repo.AppendInventoryItem(s.ctx, id, "sword")
	s.Require().NoError(err)

	s.Equal([]string{"sword", "sword"}, p.Inventory)
}

func (s *playerSuite) TestUnknownIdentity() {
	id := s.identity()

	_, _, err := s.repo.AddCharacterUnique(s.ctx, id, "Cat")
	s.ErrorIs(err, model.ErrUserNotFound)

	_, err = s.repo.AppendInventoryItem(s.ctx, id, "sword")
	s.ErrorIs(err, model.ErrUserNotFound)

	_, err = s.repo.GetCharacters(s.ctx, id)
	s.ErrorIs(err, model.ErrUserNotFound)

	// Failed writes must not create the record.
	_, err = s.repo.GetPlayer(s.ctx, id)
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *playerSuite) TestGetPlayerMatchesLastWrite() {
	id := s.identity()
	s.login(id, "Alice")
	want, err := s.repo.AppendInventoryItem(s.ctx, id, "potion")
	s.Require().NoError(err)

	got, err := s.repo.GetPlayer(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(want.Characters, got.Characters)
	s.Equal(want.Inventory, got.Inventory)
	s.Equal(want.DisplayName, got.DisplayName)
	s.True(want.LastLogin.Equal(got.LastLogin))
}

func (s *playerSuite) TestReturnedRecordsAreCopies() {
	id := s.identity()
	p := s.login(id, "Alice")
	p.Characters[0] = "Dragon"
	p.Characters = append(p.Characters, "Unicorn")

	chars, err := s.repo.GetCharacters(s.ctx, id)
	s.Require().NoError(err)
	s.Equal([]string{"Dog"}, chars)
}

func (s *playerSuite) TestConcurrentAddCharacterStoresOnce() {
	id := s.identity()
	s.login(id, "Alice")

	const workers = 16
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		added int
		errs  []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.repo.AddCharacterUnique(s.ctx, id, "Rabbit")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if ok {
				added++
			}
		}()
	}
	wg.Wait()

	s.Empty(errs)
	s.Equal(1, added)

	chars, err := s.repo.GetCharacters(s.ctx, id)
	s.Require().NoError(err)
	s.Equal([]string{"Dog", "Rabbit"}, chars)
}

func (s *playerSuite) TestConcurrentAppendsAreNotLost() {
	id := s.identity()
	s.login(id, "Alice")

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.repo.AppendInventoryItem(s.ctx, id, "coin"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}

	p, err := s.repo.GetPlayer(s.ctx, id)
	s.Require().NoError(err)
	s.Len(p.Inventory, workers)
}

func (s *playerSuite) TestConcurrentFirstLoginsCreateOneRecord() {
	id := s.identity()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.repo.UpsertLogin(s.ctx, id, "Alice"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}

	p, err := s.repo.GetPlayer(s.ctx, id)
	s.Require().NoError(err)
	s.Equal([]string{model.DefaultCharacter}, p.Characters)
}

func (s *playerSuite) TestStatsAndPing() {
	s.login(s.identity(), "Alice")

	s.NoError(s.repo.Ping(s.ctx))

	stats, err := s.repo.GetStats(s.ctx)
	s.Require().NoError(err)
	s.NotEmpty(stats["backend"])
	total, ok := stats["total_players"].(int64)
	s.Require().True(ok, "total_players is %T", stats["total_players"])
	s.GreaterOrEqual(total, int64(1))
}
