package client

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/oops"

	"wildsats-api/internal/identity"
	"wildsats-api/internal/model"
)

// ErrNotLoggedIn means a session operation needs an identity and none is active.
var ErrNotLoggedIn = errors.New("not logged in")

// ProfileResolver looks up the self-published profile of an identity.
type ProfileResolver interface {
	ResolveProfile(ctx context.Context, identity string) (model.Profile, error)
}

// SessionConfig holds Session dependencies. Client is required.
type SessionConfig struct {
	Client   *Client
	Signer   identity.Signer
	Resolver ProfileResolver
	// SessionFile persists the npub between runs. Empty disables persistence.
	SessionFile      string
	DefaultCharacter string
	Logger           *slog.Logger
}

// State is a point-in-time copy of the session mirror.
type State struct {
	PubkeyHex   string        `json:"pubkey"`
	Npub        string        `json:"npub"`
	DisplayName string        `json:"displayName"`
	Profile     model.Profile `json:"profile"`
	Characters  []string      `json:"characters"`
	Inventory   []string      `json:"inventory"`
}

// Session mirrors one player's server state. The mirror is only ever replaced with
// lists returned by the server.
type Session struct {
	client   *Client
	signer   identity.Signer
	resolver ProfileResolver
	file     string
	fallback string
	logger   *slog.Logger

	mu    sync.RWMutex
	state State
}

// NewSession creates a logged-out session.
func NewSession(cfg SessionConfig) *Session {
	if cfg.DefaultCharacter == "" {
		cfg.DefaultCharacter = model.DefaultCharacter
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Session{
		client:   cfg.Client,
		signer:   cfg.Signer,
		resolver: cfg.Resolver,
		file:     cfg.SessionFile,
		fallback: cfg.DefaultCharacter,
		logger:   cfg.Logger.With("component", "session"),
	}
}

// Login asks the signer for the current public key, resolves the profile and upserts
// the player. The key is requested on every call so a switched account is picked up.
func (s *Session) Login(ctx context.Context) (*model.PlayerRecord, error) {
	pubkey, err := identity.RequestIdentity(ctx, s.signer)
	if err != nil {
		return nil, err
	}
	npub, err := identity.EncodePublicKey(pubkey)
	if err != nil {
		return nil, err
	}

	profile := s.resolveProfile(ctx, npub)

	record, err := s.client.Login(ctx, npub, profile.NameOr(model.AnonymousName))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.state = State{
		PubkeyHex:   pubkey,
		Npub:        npub,
		DisplayName: record.DisplayName,
		Profile:     profile,
		Characters:  cloneStrings(record.Characters),
		Inventory:   cloneStrings(record.Inventory),
	}
	s.mu.Unlock()

	if err := s.saveFile(npub); err != nil {
		s.logger.WarnContext(ctx, "could not persist session", "path", s.file, "error", err)
	}

	s.logger.InfoContext(ctx, "logged in", "npub", npub, "display_name", record.DisplayName)
	return record, nil
}

func (s *Session) resolveProfile(ctx context.Context, npub string) model.Profile {
	if s.resolver == nil {
		return model.Profile{}
	}
	profile, err := s.resolver.ResolveProfile(ctx, npub)
	if err != nil {
		s.logger.DebugContext(ctx, "profile unavailable", "npub", npub, "error", err)
		return model.Profile{}
	}
	return profile
}

// Resume restores the identity saved by a previous Login without contacting the signer.
// It reports false when there is nothing to resume.
func (s *Session) Resume(ctx context.Context) (bool, error) {
	npub, err := LoadSessionFile(s.file)
	if err != nil || npub == "" {
		return false, err
	}
	pubkey, err := identity.DecodePublicKey(npub)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	s.state = State{PubkeyHex: pubkey, Npub: npub}
	s.mu.Unlock()

	if _, err := s.RefreshCharacters(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Purchase buys an animal and adopts the server's character list.
func (s *Session) Purchase(ctx context.Context, animal string) (*model.PurchaseResult, error) {
	npub, err := s.current()
	if err != nil {
		return nil, err
	}

	result, err := s.client.BuyAnimal(ctx, npub, animal)
	if err != nil {
		return nil, err
	}

	s.setCharacters(npub, result.Characters)
	return result, nil
}

// AddItem appends an inventory item and adopts the server's inventory.
func (s *Session) AddItem(ctx context.Context, item string) ([]string, error) {
	npub, err := s.current()
	if err != nil {
		return nil, err
	}

	inventory, err := s.client.AddInventoryItem(ctx, npub, item)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state.Npub == npub {
		s.state.Inventory = inventory
	}
	s.mu.Unlock()
	return cloneStrings(inventory), nil
}

// RefreshCharacters reloads the character list. An identity the server has never seen
// gets the default character.
func (s *Session) RefreshCharacters(ctx context.Context) ([]string, error) {
	npub, err := s.current()
	if err != nil {
		return nil, err
	}

	characters, err := s.client.GetCharacters(ctx, npub)
	if errors.Is(err, model.ErrUserNotFound) {
		characters, err = []string{s.fallback}, nil
	}
	if err != nil {
		return nil, err
	}

	s.setCharacters(npub, characters)
	return cloneStrings(characters), nil
}

// Logout clears the mirror and the saved session.
func (s *Session) Logout() error {
	s.mu.Lock()
	s.state = State{}
	s.mu.Unlock()

	if s.file == "" {
		return nil
	}
	if err := os.Remove(s.file); err != nil && !os.IsNotExist(err) {
		return oops.Code("SESSION_FILE").In("client").With("path", s.file).Wrap(err)
	}
	return nil
}

// Snapshot returns a copy of the mirror.
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	out.Characters = cloneStrings(s.state.Characters)
	out.Inventory = cloneStrings(s.state.Inventory)
	return out
}

// LoggedIn reports whether an identity is active.
func (s *Session) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Npub != ""
}

func (s *Session) current() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Npub == "" {
		return "", oops.Code("NOT_LOGGED_IN").In("client").Wrap(ErrNotLoggedIn)
	}
	return s.state.Npub, nil
}

// setCharacters ignores results for an identity that was switched out mid-request.
func (s *Session) setCharacters(npub string, characters []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Npub == npub {
		s.state.Characters = cloneStrings(characters)
	}
}

func (s *Session) saveFile(npub string) error {
	if s.file == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.file), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.file, []byte(npub+"\n"), 0o600)
}

// LoadSessionFile returns the npub saved at path, or "" when there is none.
func LoadSessionFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", oops.Code("SESSION_FILE").In("client").With("path", path).Wrap(err)
	}
	return strings.TrimSpace(string(data)), nil
}

func cloneStrings(in []string) []string {
	return append(make([]string, 0, len(in)), in...)
}
