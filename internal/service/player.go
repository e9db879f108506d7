package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"wildsats-api/internal/catalog"
	"wildsats-api/internal/model"
	"wildsats-api/internal/repository"
)

// ProfileResolver looks up a display name source for an identity.
type ProfileResolver interface {
	ResolveProfile(ctx context.Context, identity string) (model.Profile, error)
}

// Observer receives business events for metrics.
type Observer interface {
	RecordPurchase(animal, outcome string)
	RecordProfileLookup(result string)
}

type nopObserver struct{}

func (nopObserver) RecordPurchase(string, string) {}
func (nopObserver) RecordProfileLookup(string)    {}

// PlayerServiceConfig holds PlayerService dependencies. Repo and Catalog are required.
type PlayerServiceConfig struct {
	Repo     repository.PlayerRepository
	Catalog  *catalog.Catalog
	Resolver ProfileResolver
	Observer Observer
	Logger   *slog.Logger

	// StrictIdentity rejects identities that are not canonical npub strings.
	StrictIdentity bool
}

// PlayerService validates requests and applies them to the player repository.
// It holds no per-player state; atomicity is the repository's job.
type PlayerService struct {
	repo     repository.PlayerRepository
	catalog  *catalog.Catalog
	resolver ProfileResolver
	observer Observer
	logger   *slog.Logger
	strict   bool
}

// NewPlayerService creates a new player service.
func NewPlayerService(cfg PlayerServiceConfig) *PlayerService {
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &PlayerService{
		repo:     cfg.Repo,
		catalog:  cfg.Catalog,
		resolver: cfg.Resolver,
		observer: cfg.Observer,
		logger:   cfg.Logger.With("component", "player_service"),
		strict:   cfg.StrictIdentity,
	}
}

// Catalog returns the purchasable animals.
func (s *PlayerService) Catalog() *catalog.Catalog {
	return s.catalog
}

// Login creates the player on first sight, otherwise refreshes display name and last login.
// An empty display name is looked up on relays and falls back to "Anonymous".
func (s *PlayerService) Login(ctx context.Context, in LoginInput) (*model.PlayerRecord, error) {
	in.normalize()
	if err := validate(in); err != nil {
		return nil, err
	}
	if err := checkCanonical(s.strict, in.Identity); err != nil {
		return nil, err
	}

	name := in.DisplayName
	if name == "" {
		name = s.resolveName(ctx, in.Identity)
	}

	record, err := s.repo.UpsertLogin(ctx, in.Identity, name)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "player logged in", "identity", record.Identity, "display_name", record.DisplayName)
	return record, nil
}

func (s *PlayerService) resolveName(ctx context.Context, identity string) string {
	if s.resolver == nil {
		return model.AnonymousName
	}

	profile, err := s.resolver.ResolveProfile(ctx, identity)
	if err != nil {
		s.observer.RecordProfileLookup("unavailable")
		if !errors.Is(err, model.ErrProfileUnavailable) && !errors.Is(err, model.ErrMalformedIdentity) {
			s.logger.WarnContext(ctx, "profile lookup failed", "identity", identity, "error", err)
		}
		return model.AnonymousName
	}

	s.observer.RecordProfileLookup("found")
	return profile.NameOr(model.AnonymousName)
}

// PurchaseCharacter adds a catalog animal to the player's characters.
// Buying an owned animal succeeds with AlreadyOwned set and leaves the list unchanged.
// An unknown identity is reported as ErrUserNotFound even when the animal is also unknown.
func (s *PlayerService) PurchaseCharacter(ctx context.Context, identity, name string) (*model.PurchaseResult, error) {
	if err := s.checkIdentity(characterInput{Identity: identity, Character: name}, identity); err != nil {
		return nil, err
	}
	if !s.catalog.Contains(name) {
		if _, err := s.repo.GetCharacters(ctx, identity); err != nil {
			return nil, err
		}
		return nil, oops.Code("UNKNOWN_CHARACTER").
			In("service").
			With("character", name).
			With("available", s.catalog.Names()).
			Wrapf(model.ErrUnknownCharacter, "%q is not in the catalog", name)
	}

	record, added, err := s.repo.AddCharacterUnique(ctx, identity, name)
	if err != nil {
		return nil, err
	}

	outcome := "added"
	if !added {
		outcome = "already_owned"
	}
	s.observer.RecordPurchase(name, outcome)
	s.logger.InfoContext(ctx, "character purchased", "identity", identity, "character", name, "outcome", outcome)

	return &model.PurchaseResult{
		Characters:   record.Characters,
		Character:    name,
		AlreadyOwned: !added,
	}, nil
}

// AddCharacter grants a character without consulting the catalog. Repeats are no-ops.
func (s *PlayerService) AddCharacter(ctx context.Context, identity, name string) (*model.PlayerRecord, bool, error) {
	if err := s.checkIdentity(characterInput{Identity: identity, Character: name}, identity); err != nil {
		return nil, false, err
	}
	return s.repo.AddCharacterUnique(ctx, identity, name)
}

// AddInventoryItem appends an item. Duplicates are kept.
func (s *PlayerService) AddInventoryItem(ctx context.Context, identity, itemID string) (*model.PlayerRecord, error) {
	if err := s.checkIdentity(itemInput{Identity: identity, Item: itemID}, identity); err != nil {
		return nil, err
	}
	return s.repo.AppendInventoryItem(ctx, identity, itemID)
}

// ListCharacters returns the owned characters. Unknown identities yield ErrUserNotFound.
func (s *PlayerService) ListCharacters(ctx context.Context, identity string) ([]string, error) {
	if err := s.checkIdentity(identityInput{Identity: identity}, identity); err != nil {
		return nil, err
	}
	return s.repo.GetCharacters(ctx, identity)
}

// GetPlayer returns the full record.
func (s *PlayerService) GetPlayer(ctx context.Context, identity string) (*model.PlayerRecord, error) {
	if err := s.checkIdentity(identityInput{Identity: identity}, identity); err != nil {
		return nil, err
	}
	return s.repo.GetPlayer(ctx, identity)
}

func (s *PlayerService) checkIdentity(in interface{ Validate() error }, identity string) error {
	if err := validate(in); err != nil {
		return err
	}
	return checkCanonical(s.strict, identity)
}
