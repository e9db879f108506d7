package identity

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/samber/oops"

	"wildsats-api/internal/cache"
	"wildsats-api/internal/model"
)

const profileCachePrefix = "wildsats:profile:"

// ResolverConfig configures a ProfileResolver.
type ResolverConfig struct {
	Relays   []string
	Client   RelayClient
	Timeout  time.Duration
	Cache    cache.Cache
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// ProfileResolver looks up kind-0 profile documents across redundant relays.
type ProfileResolver struct {
	relays   []string
	client   RelayClient
	timeout  time.Duration
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewProfileResolver creates a resolver. Zero values fall back to DefaultRelays,
// websocket relays, a 5s bound and a 10m cache TTL.
func NewProfileResolver(cfg ResolverConfig) *ProfileResolver {
	if len(cfg.Relays) == 0 {
		cfg.Relays = DefaultRelays
	}
	if cfg.Client == nil {
		cfg.Client = WebsocketRelays{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &ProfileResolver{
		relays:   cfg.Relays,
		client:   cfg.Client,
		timeout:  cfg.Timeout,
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		logger:   cfg.Logger.With("component", "profile_resolver"),
	}
}

type relayResult struct {
	relay   string
	profile model.Profile
	err     error
}

// ResolveProfile returns the first profile any relay produces within the resolver's bound.
// When nothing arrives in time it returns an empty profile and ErrProfileUnavailable;
// callers treat that as non-fatal.
func (r *ProfileResolver) ResolveProfile(ctx context.Context, identity string) (model.Profile, error) {
	pubkey, err := NormalizePublicKey(identity)
	if err != nil {
		return model.Profile{}, err
	}

	if r.cache == nil {
		return r.lookup(ctx, pubkey)
	}

	// Failed lookups are never cached.
	var fetched model.Profile
	data, err := r.cache.GetOrSet(ctx, profileCachePrefix+pubkey, r.cacheTTL, func() ([]byte, error) {
		p, err := r.lookup(ctx, pubkey)
		if err != nil {
			return nil, err
		}
		fetched = p
		return json.Marshal(p)
	})
	if err != nil {
		if !fetched.IsEmpty() {
			r.logger.WarnContext(ctx, "profile cache write failed", "error", err)
			return fetched, nil
		}
		return model.Profile{}, err
	}

	var p model.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return r.lookup(ctx, pubkey)
	}
	return p, nil
}

// lookup queries every relay concurrently and returns the first non-empty profile.
func (r *ProfileResolver) lookup(ctx context.Context, pubkey string) (model.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	filter := nostr.Filter{
		Kinds:   []int{KindProfileMetadata},
		Authors: []string{pubkey},
		Limit:   1,
	}

	results := make(chan relayResult, len(r.relays))
	for _, url := range r.relays {
		go func(url string) {
			ev, err := r.client.QueryLatest(ctx, url, filter)
			if err != nil {
				results <- relayResult{relay: url, err: err}
				return
			}
			if ev == nil {
				results <- relayResult{relay: url}
				return
			}
			var p model.Profile
			if err := json.Unmarshal([]byte(ev.Content), &p); err != nil {
				results <- relayResult{relay: url, err: err}
				return
			}
			results <- relayResult{relay: url, profile: p}
		}(url)
	}

	for pending := len(r.relays); pending > 0; pending-- {
		select {
		case res := <-results:
			if res.err != nil {
				r.logger.DebugContext(ctx, "relay query failed", "relay", res.relay, "error", res.err)
				continue
			}
			if res.profile.IsEmpty() {
				continue
			}
			return res.profile, nil
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "profile resolution timed out", "pubkey", pubkey, "timeout", r.timeout)
			return model.Profile{}, unavailable(pubkey, "timeout")
		}
	}

	return model.Profile{}, unavailable(pubkey, "no relay returned a profile")
}

func unavailable(pubkey, reason string) error {
	return oops.Code("PROFILE_UNAVAILABLE").
		In("identity").
		With("pubkey", pubkey).
		With("reason", reason).
		Wrap(model.ErrProfileUnavailable)
}
