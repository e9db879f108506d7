package identity

import (
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wildsats-api/internal/logging"
)

func note(id string) *nostr.Event {
	return &nostr.Event{ID: id, Kind: KindTextNote, Content: "note " + id}
}

func receive(t *testing.T, sub *Subscription, n int) []string {
	t.Helper()
	var ids []string
	timeout := time.After(2 * time.Second)
	for len(ids) < n {
		select {
		case ev, ok := <-sub.Events():
			require.True(t, ok, "subscription closed early")
			ids = append(ids, ev.ID)
		case <-timeout:
			t.Fatalf("received %d of %d events", len(ids), n)
		}
	}
	return ids
}

func TestSubscription_DeduplicatesAcrossRelays(t *testing.T) {
	relays := newFakeRelays()
	relays.streams["wss://a"] = [][]*nostr.Event{{note("1"), note("2")}}
	relays.streams["wss://b"] = [][]*nostr.Event{{note("2"), note("3")}}

	sub := Subscribe(testContext(t), SubscribeConfig{
		Relays:     []string{"wss://a", "wss://b"},
		Client:     relays,
		MinBackoff: time.Millisecond,
		Logger:     logging.Nop(),
	})
	defer sub.Cancel()

	ids := receive(t, sub, 3)
	assert.ElementsMatch(t, []string{"1", "2", "3"}, ids)
}

func TestSubscription_RestartsDroppedStream(t *testing.T) {
	relays := newFakeRelays()
	relays.streams["wss://a"] = [][]*nostr.Event{{note("1")}, {note("1"), note("2")}}

	sub := Subscribe(testContext(t), SubscribeConfig{
		Relays:     []string{"wss://a"},
		Client:     relays,
		MinBackoff: time.Millisecond,
		MaxBackoff: 5 * time.Millisecond,
		Logger:     logging.Nop(),
	})
	defer sub.Cancel()

	assert.Equal(t, []string{"1", "2"}, receive(t, sub, 2))
	assert.GreaterOrEqual(t, relays.connectCount("wss://a"), 2)
}

func TestSubscription_CancelIsIdempotent(t *testing.T) {
	relays := newFakeRelays()

	sub := Subscribe(testContext(t), SubscribeConfig{
		Relays: []string{"wss://a"},
		Client: relays,
		Logger: logging.Nop(),
	})

	sub.Cancel()
	sub.Cancel()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop after cancel")
	}

	_, open := <-sub.Events()
	assert.False(t, open)
}

func TestSubscription_RetriesFailingRelayUntilCancelled(t *testing.T) {
	relays := newFakeRelays()
	relays.errs["wss://down"] = errRelayDown

	sub := Subscribe(testContext(t), SubscribeConfig{
		Relays:     []string{"wss://down"},
		Client:     relays,
		MinBackoff: time.Millisecond,
		MaxBackoff: 2 * time.Millisecond,
		Logger:     logging.Nop(),
	})

	assert.Eventually(t, func() bool { return relays.connectCount("wss://down") >= 3 }, 2*time.Second, 5*time.Millisecond)
	sub.Cancel()
	<-sub.Done()
}
