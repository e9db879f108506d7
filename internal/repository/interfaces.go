package repository

import (
	"context"

	"wildsats-api/internal/model"
)

// PlayerRepository persists one record per identity.
//
// Every method is atomic per identity in the backing store: concurrent callers never lose
// updates and AddCharacterUnique never stores a name twice. Implementations return
// model.ErrUserNotFound for unknown identities and wrap backend failures in
// model.ErrStorageFailure.
type PlayerRepository interface {
	// UpsertLogin creates the record on first login, otherwise overwrites the display
	// name and advances LastLogin. Characters, inventory and CreatedAt are only set on insert.
	UpsertLogin(ctx context.Context, identity, displayName string) (*model.PlayerRecord, error)

	// AddCharacterUnique adds name to the character set. added is false when it was already owned.
	AddCharacterUnique(ctx context.Context, identity, name string) (record *model.PlayerRecord, added bool, err error)

	// AppendInventoryItem appends itemID to the inventory. Duplicates are kept.
	AppendInventoryItem(ctx context.Context, identity, itemID string) (*model.PlayerRecord, error)

	// GetCharacters returns the owned characters in insertion order.
	GetCharacters(ctx context.Context, identity string) ([]string, error)

	// GetPlayer returns the full record.
	GetPlayer(ctx context.Context, identity string) (*model.PlayerRecord, error)

	// GetStats returns backend statistics for the admin endpoint.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	// Close closes the repository connection.
	Close() error
}
