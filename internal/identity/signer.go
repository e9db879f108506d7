package identity

import (
	"context"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/samber/oops"

	"wildsats-api/internal/model"
)

// Signer is the host-provided identity capability. GetPublicKey returns a hex public key.
type Signer interface {
	GetPublicKey(ctx context.Context) (string, error)
}

// EventSigner is a Signer that can also sign events, used for NIP-98 request proofs.
type EventSigner interface {
	Signer
	SignEvent(ctx context.Context, ev *nostr.Event) error
}

// RequestIdentity asks the signer for the holder's public key.
// It never fabricates an identity: a missing or failing signer is ErrSignerUnavailable.
func RequestIdentity(ctx context.Context, s Signer) (string, error) {
	if s == nil {
		return "", oops.Code("SIGNER_UNAVAILABLE").In("identity").Wrap(model.ErrSignerUnavailable)
	}

	pub, err := s.GetPublicKey(ctx)
	if err != nil {
		return "", oops.Code("SIGNER_UNAVAILABLE").
			In("identity").
			With("cause", err.Error()).
			Wrap(model.ErrSignerUnavailable)
	}
	return normalizeHex(pub)
}

// KeySigner signs with a locally held secret key.
type KeySigner struct {
	secret string
	public string
}

// NewKeySigner accepts a secret key as nsec or hex.
func NewKeySigner(secret string) (*KeySigner, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, oops.Code("SIGNER_UNAVAILABLE").In("identity").Wrap(model.ErrSignerUnavailable)
	}

	if strings.HasPrefix(secret, nsecPrefix+"1") {
		prefix, value, err := nip19.Decode(secret)
		if err != nil || prefix != nsecPrefix {
			return nil, oops.Code("INVALID_SECRET").In("identity").Errorf("invalid nsec")
		}
		s, ok := value.(string)
		if !ok {
			return nil, oops.Code("INVALID_SECRET").In("identity").Errorf("invalid nsec payload")
		}
		secret = s
	}

	sk, err := normalizeHex(secret)
	if err != nil {
		return nil, oops.Code("INVALID_SECRET").In("identity").Errorf("secret key must be 32 bytes")
	}

	pub, err := nostr.GetPublicKey(sk)
	if err != nil {
		return nil, oops.Code("INVALID_SECRET").In("identity").Wrap(err)
	}
	return &KeySigner{secret: sk, public: pub}, nil
}

// GenerateKeySigner creates a signer for a fresh random key.
func GenerateKeySigner() (*KeySigner, error) {
	return NewKeySigner(nostr.GeneratePrivateKey())
}

// GetPublicKey returns the hex public key.
func (k *KeySigner) GetPublicKey(context.Context) (string, error) {
	return k.public, nil
}

// SignEvent sets the author and signs ev in place.
func (k *KeySigner) SignEvent(_ context.Context, ev *nostr.Event) error {
	ev.PubKey = k.public
	if err := ev.Sign(k.secret); err != nil {
		return oops.Code("SIGN_FAILED").In("identity").Wrap(err)
	}
	return nil
}

// SecretNsec returns the secret in nsec form.
func (k *KeySigner) SecretNsec() (string, error) {
	return nip19.EncodePrivateKey(k.secret)
}

var _ EventSigner = (*KeySigner)(nil)
