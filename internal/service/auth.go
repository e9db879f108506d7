package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"wildsats-api/internal/cache"
	"wildsats-api/internal/identity"
)

// replayKeyPrefix namespaces seen NIP-98 event IDs in the cache.
const replayKeyPrefix = "wildsats:nip98:"

// AuthService validates NIP-98 request proofs and rejects replays.
type AuthService struct {
	verifier identity.AuthVerifier
	replay   cache.Cache
	ttl      time.Duration
	logger   *slog.Logger
}

// NewAuthService creates a new auth service. Seen event IDs are kept in replay for
// twice the accepted clock window.
func NewAuthService(replay cache.Cache, window time.Duration, logger *slog.Logger) *AuthService {
	if window <= 0 {
		window = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		verifier: identity.AuthVerifier{Window: window},
		replay:   replay,
		ttl:      2 * window,
		logger:   logger.With("component", "auth_service"),
	}
}

// Authenticate checks an Authorization header against the request and returns the
// signer's hex public key. Each signed event is accepted once.
func (s *AuthService) Authenticate(ctx context.Context, header, method, path string, body []byte) (string, error) {
	ev, err := identity.ParseAuthorization(header)
	if err != nil {
		return "", err
	}

	pubkey, err := s.verifier.Verify(ev, method, path, body)
	if err != nil {
		return "", err
	}

	if s.replay != nil {
		fresh, err := s.replay.SetIfAbsent(ctx, replayKeyPrefix+ev.ID, []byte(pubkey), s.ttl)
		if err != nil {
			return "", oops.Code("AUTH_UNAVAILABLE").In("service").Wrapf(err, "replay check failed")
		}
		if !fresh {
			return "", oops.Code("INVALID_AUTH").
				In("service").
				With("reason", "replayed event").
				Wrapf(identity.ErrInvalidAuth, "authorization event already used")
		}
	}

	s.logger.DebugContext(ctx, "request authenticated", "pubkey", pubkey, "method", method, "path", path)
	return pubkey, nil
}

// SameIdentity reports whether the authenticated hex key owns the target identity
// (npub or hex).
func SameIdentity(pubkeyHex, target string) bool {
	key, err := identity.NormalizePublicKey(target)
	if err != nil {
		return false
	}
	return key == pubkeyHex
}
