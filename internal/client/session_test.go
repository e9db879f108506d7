package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wildsats-api/internal/cache"
	"wildsats-api/internal/handler"
	"wildsats-api/internal/identity"
	"wildsats-api/internal/logging"
	"wildsats-api/internal/middleware"
	"wildsats-api/internal/model"
	"wildsats-api/internal/repository"
	"wildsats-api/internal/router"
	"wildsats-api/internal/service"
)

func newServer(t *testing.T, authRequired bool) *httptest.Server {
	t.Helper()
	logger := logging.Nop()
	repo := repository.NewMemoryPlayerRepository()
	players := service.NewPlayerService(service.PlayerServiceConfig{
		Repo:           repo,
		Logger:         logger,
		StrictIdentity: true,
	})
	replay := cache.NewMemoryCache()
	t.Cleanup(func() { _ = replay.Close() })

	srv := httptest.NewServer(router.New(router.Config{
		PlayerHandler: handler.NewPlayerHandler(players, logger, false),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{
			Authenticator: service.NewAuthService(replay, time.Minute, logger),
			Required:      authRequired,
			Logger:        logger,
		}),
		Logger: logger,
	}))
	t.Cleanup(srv.Close)
	return srv
}

type stubResolver struct {
	profile model.Profile
	err     error
}

func (s stubResolver) ResolveProfile(context.Context, string) (model.Profile, error) {
	return s.profile, s.err
}

// switchingSigner lets a test swap the active key between logins.
type switchingSigner struct {
	mu     sync.Mutex
	active *identity.KeySigner
}

func (s *switchingSigner) GetPublicKey(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.GetPublicKey(ctx)
}

func (s *switchingSigner) use(k *identity.KeySigner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = k
}

func newKey(t *testing.T) *identity.KeySigner {
	t.Helper()
	k, err := identity.GenerateKeySigner()
	require.NoError(t, err)
	return k
}

func npubOf(t *testing.T, k *identity.KeySigner) string {
	t.Helper()
	pub, err := k.GetPublicKey(testContext(t))
	require.NoError(t, err)
	npub, err := identity.EncodePublicKey(pub)
	require.NoError(t, err)
	return npub
}

func newTestSession(t *testing.T, srvURL string, signer identity.Signer, resolver ProfileResolver) (*Session, string) {
	t.Helper()
	file := filepath.Join(t.TempDir(), "wildsats", "session")
	return NewSession(SessionConfig{
		Client:      NewClient(srvURL),
		Signer:      signer,
		Resolver:    resolver,
		SessionFile: file,
		Logger:      logging.Nop(),
	}), file
}

func TestSession_LoginUsesProfileName(t *testing.T) {
	srv := newServer(t, false)
	key := newKey(t)
	s, file := newTestSession(t, srv.URL, key, stubResolver{profile: model.Profile{Name: "Alice"}})

	record, err := s.Login(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, "Alice", record.DisplayName)
	assert.Equal(t, []string{"Dog"}, record.Characters)

	state := s.Snapshot()
	assert.Equal(t, npubOf(t, key), state.Npub)
	assert.Equal(t, []string{"Dog"}, state.Characters)
	assert.Empty(t, state.Inventory)

	saved, err := LoadSessionFile(file)
	require.NoError(t, err)
	assert.Equal(t, state.Npub, saved)
}

func TestSession_LoginFallsBackToAnonymous(t *testing.T) {
	srv := newServer(t, false)
	s, _ := newTestSession(t, srv.URL, newKey(t), stubResolver{err: model.ErrProfileUnavailable})

	record, err := s.Login(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, model.AnonymousName, record.DisplayName)
}

func TestSession_LoginWithoutSigner(t *testing.T) {
	srv := newServer(t, false)
	s, file := newTestSession(t, srv.URL, nil, nil)

	_, err := s.Login(testContext(t))
	require.ErrorIs(t, err, model.ErrSignerUnavailable)
	assert.False(t, s.LoggedIn())

	_, statErr := os.Stat(file)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSession_LoginRequestsFreshKey(t *testing.T) {
	srv := newServer(t, false)
	first, second := newKey(t), newKey(t)
	signer := &switchingSigner{active: first}
	s, _ := newTestSession(t, srv.URL, signer, nil)

	_, err := s.Login(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, npubOf(t, first), s.Snapshot().Npub)

	signer.use(second)
	_, err = s.Login(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, npubOf(t, second), s.Snapshot().Npub)
}

func TestSession_PurchaseTwice(t *testing.T) {
	srv := newServer(t, false)
	s, _ := newTestSession(t, srv.URL, newKey(t), nil)
	_, err := s.Login(testContext(t))
	require.NoError(t, err)

	res, err := s.Purchase(testContext(t), "Cat")
	require.NoError(t, err)
	assert.False(t, res.AlreadyOwned)
	assert.Equal(t, []string{"Dog", "Cat"}, res.Characters)

	res, err = s.Purchase(testContext(t), "Cat")
	require.NoError(t, err)
	assert.True(t, res.AlreadyOwned)
	assert.Equal(t, []string{"Dog", "Cat"}, s.Snapshot().Characters)
}

func TestSession_PurchaseUnknownAnimal(t *testing.T) {
	srv := newServer(t, false)
	s, _ := newTestSession(t, srv.URL, newKey(t), nil)
	_, err := s.Login(testContext(t))
	require.NoError(t, err)

	_, err = s.Purchase(testContext(t), "Dragon")
	require.ErrorIs(t, err, model.ErrUnknownCharacter)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Status)
	assert.Equal(t, []string{"Dog"}, s.Snapshot().Characters)
}

func TestSession_AddItemKeepsDuplicates(t *testing.T) {
	srv := newServer(t, false)
	s, _ := newTestSession(t, srv.URL, newKey(t), nil)
	_, err := s.Login(testContext(t))
	require.NoError(t, err)

	_, err = s.AddItem(testContext(t), "bone")
	require.NoError(t, err)
	inv, err := s.AddItem(testContext(t), "bone")
	require.NoError(t, err)

	assert.Equal(t, []string{"bone", "bone"}, inv)
	assert.Equal(t, inv, s.Snapshot().Inventory)
}

func TestSession_ResumeUnknownIdentityGetsDefault(t *testing.T) {
	srv := newServer(t, false)
	s, file := newTestSession(t, srv.URL, nil, nil)

	npub := npubOf(t, newKey(t))
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o700))
	require.NoError(t, os.WriteFile(file, []byte(npub+"\n"), 0o600))

	resumed, err := s.Resume(testContext(t))
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, []string{"Dog"}, s.Snapshot().Characters)
}

func TestSession_ResumeAgainstWrongBaseURL(t *testing.T) {
	srv := newServer(t, false)
	s, file := newTestSession(t, srv.URL+"/v9", nil, nil)

	npub := npubOf(t, newKey(t))
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o700))
	require.NoError(t, os.WriteFile(file, []byte(npub+"\n"), 0o600))

	_, err := s.Resume(testContext(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrUserNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ROUTE_NOT_FOUND", apiErr.Code)
	assert.Empty(t, s.Snapshot().Characters)
}

func TestSession_ResumeWithoutFile(t *testing.T) {
	srv := newServer(t, false)
	s, _ := newTestSession(t, srv.URL, nil, nil)

	resumed, err := s.Resume(testContext(t))
	require.NoError(t, err)
	assert.False(t, resumed)
}

func TestSession_Logout(t *testing.T) {
	srv := newServer(t, false)
	s, file := newTestSession(t, srv.URL, newKey(t), nil)
	_, err := s.Login(testContext(t))
	require.NoError(t, err)

	require.NoError(t, s.Logout())
	assert.False(t, s.LoggedIn())
	assert.Empty(t, s.Snapshot().Characters)

	_, statErr := os.Stat(file)
	assert.True(t, os.IsNotExist(statErr))

	_, err = s.Purchase(testContext(t), "Cat")
	require.ErrorIs(t, err, ErrNotLoggedIn)

	require.NoError(t, s.Logout())
}

func TestSession_ConcurrentReaders(t *testing.T) {
	srv := newServer(t, false)
	s, _ := newTestSession(t, srv.URL, newKey(t), nil)
	_, err := s.Login(testContext(t))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = s.Snapshot()
			}
		}()
	}
	for _, animal := range []string{"Cat", "Rabbit"} {
		_, err := s.Purchase(testContext(t), animal)
		require.NoError(t, err)
	}
	wg.Wait()

	assert.Equal(t, []string{"Dog", "Cat", "Rabbit"}, s.Snapshot().Characters)
}

func TestClient_SignedRequestsWhenAuthRequired(t *testing.T) {
	srv := newServer(t, true)
	key := newKey(t)

	unsigned := NewSession(SessionConfig{Client: NewClient(srv.URL), Signer: key, Logger: logging.Nop()})
	_, err := unsigned.Login(testContext(t))
	require.ErrorIs(t, err, identity.ErrInvalidAuth)

	signed := NewSession(SessionConfig{Client: NewClient(srv.URL, WithSigner(key)), Signer: key, Logger: logging.Nop()})
	_, err = signed.Login(testContext(t))
	require.NoError(t, err)

	res, err := signed.Purchase(testContext(t), "Rabbit")
	require.NoError(t, err)
	assert.Equal(t, []string{"Dog", "Rabbit"}, res.Characters)
}

func TestClient_TransportError(t *testing.T) {
	srv := newServer(t, false)
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).GetCharacters(testContext(t), "npub1x")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "request failed"))
}

func TestClient_Catalog(t *testing.T) {
	srv := newServer(t, false)

	animals, err := NewClient(srv.URL + "/").Catalog(testContext(t))
	require.NoError(t, err)
	require.Len(t, animals, 3)
	assert.Equal(t, "Cat", animals[0].Name)
}
