package identity

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
)

// DefaultRelays is the relay set queried when none are configured.
var DefaultRelays = []string{
	"wss://relay.damus.io",
	"wss://relay.snort.social",
	"wss://nostr.wine",
	"wss://nostr.mom",
	"wss://nostr.mutiny.nz",
	"wss://nostr.oxtr.dev",
}

const (
	// KindProfileMetadata is the kind-0 self-published profile document.
	KindProfileMetadata = 0
	// KindTextNote is a kind-1 short text note.
	KindTextNote = 1
)

// RelayClient talks to a single relay endpoint.
type RelayClient interface {
	// QueryLatest returns the newest event matching filter, or nil when the relay has none.
	QueryLatest(ctx context.Context, relayURL string, filter nostr.Filter) (*nostr.Event, error)

	// Stream delivers live events matching filter until ctx ends or the connection drops,
	// then closes the returned channel.
	Stream(ctx context.Context, relayURL string, filter nostr.Filter) (<-chan *nostr.Event, error)
}

// WebsocketRelays implements RelayClient over go-nostr websocket connections.
type WebsocketRelays struct{}

// QueryLatest connects, runs a one-shot query and disconnects.
func (WebsocketRelays) QueryLatest(ctx context.Context, relayURL string, filter nostr.Filter) (*nostr.Event, error) {
	relay, err := nostr.RelayConnect(ctx, relayURL)
	if err != nil {
		return nil, err
	}
	defer relay.Close()

	events, err := relay.QuerySync(ctx, filter)
	if err != nil {
		return nil, err
	}

	var latest *nostr.Event
	for _, ev := range events {
		if latest == nil || ev.CreatedAt > latest.CreatedAt {
			latest = ev
		}
	}
	return latest, nil
}

// Stream opens a long-lived subscription on one relay.
func (WebsocketRelays) Stream(ctx context.Context, relayURL string, filter nostr.Filter) (<-chan *nostr.Event, error) {
	relay, err := nostr.RelayConnect(ctx, relayURL)
	if err != nil {
		return nil, err
	}

	sub, err := relay.Subscribe(ctx, nostr.Filters{filter})
	if err != nil {
		relay.Close()
		return nil, err
	}

	out := make(chan *nostr.Event)
	go func() {
		defer close(out)
		defer relay.Close()
		defer sub.Unsub()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.Events:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

var _ RelayClient = WebsocketRelays{}
