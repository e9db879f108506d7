package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/nbd-wtf/go-nostr"
)

// fakeRelays is an in-process RelayClient keyed by relay URL.
type fakeRelays struct {
	mu       sync.Mutex
	latest   map[string]*nostr.Event
	errs     map[string]error
	hang     map[string]bool
	streams  map[string][][]*nostr.Event
	connects map[string]int
	queries  int
}

func newFakeRelays() *fakeRelays {
	return &fakeRelays{
		latest:   map[string]*nostr.Event{},
		errs:     map[string]error{},
		hang:     map[string]bool{},
		streams:  map[string][][]*nostr.Event{},
		connects: map[string]int{},
	}
}

func (f *fakeRelays) QueryLatest(ctx context.Context, url string, _ nostr.Filter) (*nostr.Event, error) {
	f.mu.Lock()
	f.queries++
	hang, err, ev := f.hang[url], f.errs[url], f.latest[url]
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return ev, err
}

// Stream replays the next scripted batch for url, then drops the connection.
// Once the script runs out the stream stays open until ctx ends.
func (f *fakeRelays) Stream(ctx context.Context, url string, _ nostr.Filter) (<-chan *nostr.Event, error) {
	f.mu.Lock()
	n := f.connects[url]
	f.connects[url]++
	script := f.streams[url]
	err := f.errs[url]
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}

	out := make(chan *nostr.Event)
	go func() {
		defer close(out)
		if n < len(script) {
			for _, ev := range script[n] {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
			return
		}
		<-ctx.Done()
	}()
	return out, nil
}

func (f *fakeRelays) connectCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects[url]
}

var errRelayDown = errors.New("dial tcp: connection refused")
