// Package identity obtains, encodes and proves Nostr identities.
//
// Identities travel in two forms: the 64-character lowercase hex public key used on the
// wire by relays, and the NIP-19 "npub" bech32 string used as the canonical display and
// storage key.
package identity

import (
	"encoding/hex"
	"strings"

	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/samber/oops"

	"wildsats-api/internal/model"
)

const (
	npubPrefix = "npub"
	nsecPrefix = "nsec"
	keyHexLen  = 64
)

// EncodePublicKey converts a hex public key to its npub form.
func EncodePublicKey(pubkeyHex string) (string, error) {
	key, err := normalizeHex(pubkeyHex)
	if err != nil {
		return "", err
	}

	npub, err := nip19.EncodePublicKey(key)
	if err != nil {
		return "", malformed(pubkeyHex, err)
	}
	return npub, nil
}

// DecodePublicKey converts an npub string back to its hex public key.
func DecodePublicKey(npub string) (string, error) {
	prefix, value, err := nip19.Decode(strings.TrimSpace(npub))
	if err != nil {
		return "", malformed(npub, err)
	}
	if prefix != npubPrefix {
		return "", oops.Code("MALFORMED_IDENTITY").
			In("identity").
			With("prefix", prefix).
			Wrapf(model.ErrMalformedIdentity, "expected %s, got %s", npubPrefix, prefix)
	}

	key, ok := value.(string)
	if !ok {
		return "", malformed(npub, nil)
	}
	return normalizeHex(key)
}

// NormalizePublicKey accepts an npub or a hex key and returns lowercase hex.
func NormalizePublicKey(identity string) (string, error) {
	identity = strings.TrimSpace(identity)
	if strings.HasPrefix(strings.ToLower(identity), npubPrefix+"1") {
		return DecodePublicKey(identity)
	}
	return normalizeHex(identity)
}

// IsCanonical reports whether s is a well-formed npub.
func IsCanonical(s string) bool {
	_, err := DecodePublicKey(s)
	return err == nil
}

func normalizeHex(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != keyHexLen {
		return "", malformed(s, nil)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", malformed(s, err)
	}
	return s, nil
}

func malformed(input string, cause error) error {
	b := oops.Code("MALFORMED_IDENTITY").In("identity").With("length", len(input))
	if cause != nil {
		b = b.With("cause", cause.Error())
	}
	return b.Wrap(model.ErrMalformedIdentity)
}
