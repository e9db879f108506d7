package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sethvargo/go-retry"
)

var errStreamClosed = errors.New("relay stream closed")

// maxSeen bounds the de-duplication memory of a long-running subscription.
const maxSeen = 10000

// SubscribeConfig configures a Subscription.
type SubscribeConfig struct {
	Relays     []string
	Client     RelayClient
	Filter     nostr.Filter
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Logger     *slog.Logger
}

// Subscription is a cancellable fan-in of live events from several relays.
// Each relay stream is restarted with backoff whenever it drops. Events are
// de-duplicated by ID and delivered lazily: relays block until the consumer reads.
type Subscription struct {
	events chan *nostr.Event
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}

	mu   sync.Mutex
	seen map[string]struct{}
}

// Subscribe starts a subscription. It runs until ctx ends or Cancel is called.
func Subscribe(ctx context.Context, cfg SubscribeConfig) *Subscription {
	if len(cfg.Relays) == 0 {
		cfg.Relays = DefaultRelays
	}
	if cfg.Client == nil {
		cfg.Client = WebsocketRelays{}
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("component", "subscription")

	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		events: make(chan *nostr.Event),
		cancel: cancel,
		done:   make(chan struct{}),
		seen:   make(map[string]struct{}),
	}

	var wg sync.WaitGroup
	for _, url := range cfg.Relays {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			backoff := retry.WithCappedDuration(cfg.MaxBackoff, retry.NewExponential(cfg.MinBackoff))
			err := retry.Do(ctx, backoff, func(ctx context.Context) error {
				stream, err := cfg.Client.Stream(ctx, url, cfg.Filter)
				if err != nil {
					logger.DebugContext(ctx, "relay connect failed", "relay", url, "error", err)
					return retry.RetryableError(err)
				}
				for ev := range stream {
					if !s.firstSighting(ev.ID) {
						continue
					}
					select {
					case s.events <- ev:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.DebugContext(ctx, "relay stream dropped, restarting", "relay", url)
				return retry.RetryableError(errStreamClosed)
			})
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				logger.WarnContext(ctx, "relay subscription ended", "relay", url, "error", err)
			}
		}(url)
	}

	go func() {
		wg.Wait()
		close(s.events)
		close(s.done)
	}()

	return s
}

// Events returns the event stream. It is closed once the subscription stops.
func (s *Subscription) Events() <-chan *nostr.Event {
	return s.events
}

// Done is closed after every relay stream has stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Cancel stops the subscription. Calling it more than once is a no-op.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

func (s *Subscription) firstSighting(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[id]; ok {
		return false
	}
	if len(s.seen) >= maxSeen {
		s.seen = make(map[string]struct{})
	}
	s.seen[id] = struct{}{}
	return true
}
