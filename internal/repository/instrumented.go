package repository

import (
	"context"
	"errors"
	"time"

	"wildsats-api/internal/model"
)

// OperationObserver receives the outcome of each store call.
type OperationObserver interface {
	ObserveStoreOperation(backend, operation, status string, d time.Duration)
}

// Instrumented decorates a PlayerRepository with per-operation metrics.
type Instrumented struct {
	next     PlayerRepository
	backend  string
	observer OperationObserver
}

// NewInstrumented wraps next. backend labels every observation.
func NewInstrumented(next PlayerRepository, backend string, observer OperationObserver) *Instrumented {
	return &Instrumented{next: next, backend: backend, observer: observer}
}

func (i *Instrumented) observe(op string, start time.Time, err error) {
	status := "success"
	switch {
	case errors.Is(err, model.ErrUserNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	i.observer.ObserveStoreOperation(i.backend, op, status, time.Since(start))
}

func (i *Instrumented) UpsertLogin(ctx context.Context, identity, displayName string) (*model.PlayerRecord, error) {
	start := time.Now()
	p, err := i.next.UpsertLogin(ctx, identity, displayName)
	i.observe("upsert_login", start, err)
	return p, err
}

func (i *Instrumented) AddCharacterUnique(ctx context.Context, identity, name string) (*model.PlayerRecord, bool, error) {
	start := time.Now()
	p, added, err := i.next.AddCharacterUnique(ctx, identity, name)
	i.observe("add_character", start, err)
	return p, added, err
}

func (i *Instrumented) AppendInventoryItem(ctx context.Context, identity, itemID string) (*model.PlayerRecord, error) {
	start := time.Now()
	p, err := i.next.AppendInventoryItem(ctx, identity, itemID)
	i.observe("append_inventory", start, err)
	return p, err
}

func (i *Instrumented) GetCharacters(ctx context.Context, identity string) ([]string, error) {
	start := time.Now()
	c, err := i.next.GetCharacters(ctx, identity)
	i.observe("get_characters", start, err)
	return c, err
}

func (i *Instrumented) GetPlayer(ctx context.Context, identity string) (*model.PlayerRecord, error) {
	start := time.Now()
	p, err := i.next.GetPlayer(ctx, identity)
	i.observe("get_player", start, err)
	return p, err
}

func (i *Instrumented) GetStats(ctx context.Context) (map[string]interface{}, error) {
	return i.next.GetStats(ctx)
}

func (i *Instrumented) Ping(ctx context.Context) error {
	return i.next.Ping(ctx)
}

func (i *Instrumented) Close() error {
	return i.next.Close()
}

var _ PlayerRepository = (*Instrumented)(nil)
