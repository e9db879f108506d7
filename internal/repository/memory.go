package repository

import (
	"context"
	"sync"

	"wildsats-api/internal/model"
)

// MemoryPlayerRepository keeps records in process memory. Used for tests and demos.
type MemoryPlayerRepository struct {
	mu      sync.Mutex
	players map[string]*model.PlayerRecord
	opts    options
}

// NewMemoryPlayerRepository creates an empty in-memory repository.
func NewMemoryPlayerRepository(opts ...Option) *MemoryPlayerRepository {
	return &MemoryPlayerRepository{
		players: make(map[string]*model.PlayerRecord),
		opts:    buildOptions("memory", opts),
	}
}

// UpsertLogin creates or refreshes a record.
func (r *MemoryPlayerRepository) UpsertLogin(ctx context.Context, identity, displayName string) (*model.PlayerRecord, error) {
	now := r.opts.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[identity]
	if !ok {
		p = &model.PlayerRecord{
			Identity:   identity,
			Characters: []string{r.opts.defaultCharacter},
			Inventory:  []string{},
			CreatedAt:  now,
			LastLogin:  now,
		}
		r.players[identity] = p
	}

	p.DisplayName = displayName
	if now.After(p.LastLogin) {
		p.LastLogin = now
	}
	return p.Clone(), nil
}

// AddCharacterUnique adds name unless already owned.
func (r *MemoryPlayerRepository) AddCharacterUnique(ctx context.Context, identity, name string) (*model.PlayerRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[identity]
	if !ok {
		return nil, false, notFound("add_character", identity)
	}
	if p.HasCharacter(name) {
		return p.Clone(), false, nil
	}
	p.Characters = append(p.Characters, name)
	return p.Clone(), true, nil
}

// AppendInventoryItem appends itemID.
func (r *MemoryPlayerRepository) AppendInventoryItem(ctx context.Context, identity, itemID string) (*model.PlayerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[identity]
	if !ok {
		return nil, notFound("append_inventory", identity)
	}
	p.Inventory = append(p.Inventory, itemID)
	return p.Clone(), nil
}

// GetCharacters returns a copy of the character list.
func (r *MemoryPlayerRepository) GetCharacters(ctx context.Context, identity string) ([]string, error) {
	p, err := r.GetPlayer(ctx, identity)
	if err != nil {
		return nil, err
	}
	return p.Characters, nil
}

// GetPlayer returns a copy of the record.
func (r *MemoryPlayerRepository) GetPlayer(ctx context.Context, identity string) (*model.PlayerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[identity]
	if !ok {
		return nil, notFound("get_player", identity)
	}
	return p.Clone(), nil
}

// GetStats returns record counts.
func (r *MemoryPlayerRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var characters, items int
	for _, p := range r.players {
		characters += len(p.Characters)
		items += len(p.Inventory)
	}
	return map[string]interface{}{
		"backend":               "memory",
		"total_players":         int64(len(r.players)),
		"total_characters":      int64(characters),
		"total_inventory_items": int64(items),
	}, nil
}

// Ping always succeeds.
func (r *MemoryPlayerRepository) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (r *MemoryPlayerRepository) Close() error {
	return nil
}

var _ PlayerRepository = (*MemoryPlayerRepository)(nil)
