package identity

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/samber/oops"
)

// KindHTTPAuth is the NIP-98 HTTP auth event kind.
const KindHTTPAuth = 27235

// AuthScheme is the Authorization header scheme for NIP-98.
const AuthScheme = "Nostr"

// ErrInvalidAuth means a NIP-98 proof was missing, malformed or did not match the request.
var ErrInvalidAuth = errors.New("invalid nostr authorization")

// AuthorizationHeader builds and signs a NIP-98 header value for a request.
func AuthorizationHeader(ctx context.Context, signer EventSigner, method, rawURL string, body []byte) (string, error) {
	ev := nostr.Event{
		Kind:      KindHTTPAuth,
		CreatedAt: nostr.Now(),
		Tags: nostr.Tags{
			{"u", rawURL},
			{"method", strings.ToUpper(method)},
		},
	}
	if len(body) > 0 {
		ev.Tags = append(ev.Tags, nostr.Tag{"payload", payloadHash(body)})
	}

	if err := signer.SignEvent(ctx, &ev); err != nil {
		return "", err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return "", oops.Code("AUTH_ENCODE").In("identity").Wrap(err)
	}
	return AuthScheme + " " + base64.StdEncoding.EncodeToString(data), nil
}

// ParseAuthorization decodes a "Nostr <base64 event>" header value.
func ParseAuthorization(header string) (*nostr.Event, error) {
	scheme, encoded, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, AuthScheme) {
		return nil, invalidAuth("missing Nostr authorization")
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, invalidAuth("authorization is not base64")
	}

	var ev nostr.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, invalidAuth("authorization is not an event")
	}
	return &ev, nil
}

// AuthVerifier checks NIP-98 events against the request they claim to authorize.
type AuthVerifier struct {
	Window time.Duration
	Now    func() time.Time
}

// Verify validates ev for method and path and returns the signer's hex public key.
// A non-empty body must match the event's payload tag.
func (v AuthVerifier) Verify(ev *nostr.Event, method, path string, body []byte) (string, error) {
	if ev.Kind != KindHTTPAuth {
		return "", invalidAuth("wrong event kind")
	}

	if ev.GetID() != ev.ID {
		return "", invalidAuth("event id mismatch")
	}
	ok, err := ev.CheckSignature()
	if err != nil || !ok {
		return "", invalidAuth("bad signature")
	}

	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}
	window := v.Window
	if window <= 0 {
		window = time.Minute
	}
	created := time.Unix(int64(ev.CreatedAt), 0)
	if created.Before(now.Add(-window)) || created.After(now.Add(window)) {
		return "", invalidAuth("event outside time window")
	}

	u, err := url.Parse(tagValue(ev, "u"))
	if err != nil || u.Path != path {
		return "", invalidAuth("url tag does not match request")
	}
	if !strings.EqualFold(tagValue(ev, "method"), method) {
		return "", invalidAuth("method tag does not match request")
	}

	want := tagValue(ev, "payload")
	switch {
	case want == "" && len(body) > 0:
		return "", invalidAuth("payload tag missing")
	case want != "" && !strings.EqualFold(want, payloadHash(body)):
		return "", invalidAuth("payload hash does not match body")
	}

	return normalizeHex(ev.PubKey)
}

func tagValue(ev *nostr.Event, name string) string {
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1]
		}
	}
	return ""
}

func payloadHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func invalidAuth(reason string) error {
	return oops.Code("INVALID_AUTH").In("identity").With("reason", reason).Wrapf(ErrInvalidAuth, "%s", reason)
}
