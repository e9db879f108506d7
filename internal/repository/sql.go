package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"wildsats-api/internal/model"
)

// dialect holds the backend-specific statements. Placeholders are written as "?" and
// rebound for drivers that number them.
type dialect struct {
	name     string
	numbered bool
	schema   []string

	// insertPlayer must do nothing when the identity exists.
	insertPlayer string
	// touchLogin sets display_name and keeps the larger last_login.
	touchLogin string
	// insertCharacter must do nothing when (identity, name) exists.
	insertCharacter string
}

const (
	insertItemQuery       = `INSERT INTO player_inventory (identity, item_id) VALUES (?, ?)`
	selectPlayerQuery     = `SELECT identity, display_name, created_at, last_login FROM players WHERE identity = ?`
	selectCharactersQuery = `SELECT name FROM player_characters WHERE identity = ? ORDER BY id`
	selectInventoryQuery  = `SELECT item_id FROM player_inventory WHERE identity = ? ORDER BY id`
	existsQuery           = `SELECT COUNT(*) FROM players WHERE identity = ?`
)

// sqlPlayerRepository implements PlayerRepository on database/sql.
// Each write runs in one transaction; uniqueness is enforced by table constraints.
type sqlPlayerRepository struct {
	db   *sql.DB
	d    dialect
	opts options
}

func newSQLPlayerRepository(ctx context.Context, db *sql.DB, d dialect, opts options) (*sqlPlayerRepository, error) {
	r := &sqlPlayerRepository{db: db, d: d, opts: opts}
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, storageError("create_schema", "", err)
		}
	}
	return r, nil
}

func (r *sqlPlayerRepository) q(query string) string {
	if !r.d.numbered {
		return query
	}
	return rebind(query)
}

// rebind rewrites ? placeholders as $1, $2, ...
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *sqlPlayerRepository) inTx(ctx context.Context, op, identity string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError(op, identity, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		if errors.Is(err, model.ErrUserNotFound) || errors.Is(err, model.ErrStorageFailure) {
			return err
		}
		return storageError(op, identity, err)
	}

	if err := tx.Commit(); err != nil {
		return storageError(op, identity, err)
	}
	return nil
}

// UpsertLogin creates or refreshes a record in one transaction.
func (r *sqlPlayerRepository) UpsertLogin(ctx context.Context, identity, displayName string) (*model.PlayerRecord, error) {
	now := r.opts.clock.Now().UnixMicro()

	var record *model.PlayerRecord
	err := r.inTx(ctx, "upsert_login", identity, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.q(r.d.insertPlayer), identity, displayName, now, now)
		if err != nil {
			return err
		}
		created, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if created == 1 {
			if _, err := tx.ExecContext(ctx, r.q(r.d.insertCharacter), identity, r.opts.defaultCharacter); err != nil {
				return err
			}
			r.opts.logger.DebugContext(ctx, "player created", "identity", identity)
		}

		if _, err := tx.ExecContext(ctx, r.q(r.d.touchLogin), displayName, now, identity); err != nil {
			return err
		}

		record, err = r.load(ctx, tx, "upsert_login", identity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// AddCharacterUnique inserts the character, relying on UNIQUE(identity, name).
func (r *sqlPlayerRepository) AddCharacterUnique(ctx context.Context, identity, name string) (*model.PlayerRecord, bool, error) {
	var (
		record *model.PlayerRecord
		added  bool
	)
	err := r.inTx(ctx, "add_character", identity, func(tx *sql.Tx) error {
		if err := r.mustExist(ctx, tx, "add_character", identity); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, r.q(r.d.insertCharacter), identity, name)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		added = n == 1

		record, err = r.load(ctx, tx, "add_character", identity)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return record, added, nil
}

// AppendInventoryItem inserts one inventory row.
func (r *sqlPlayerRepository) AppendInventoryItem(ctx context.Context, identity, itemID string) (*model.PlayerRecord, error) {
	var record *model.PlayerRecord
	err := r.inTx(ctx, "append_inventory", identity, func(tx *sql.Tx) error {
		if err := r.mustExist(ctx, tx, "append_inventory", identity); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, r.q(insertItemQuery), identity, itemID); err != nil {
			return err
		}

		var err error
		record, err = r.load(ctx, tx, "append_inventory", identity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetCharacters returns the owned characters in insertion order.
func (r *sqlPlayerRepository) GetCharacters(ctx context.Context, identity string) ([]string, error) {
	p, err := r.GetPlayer(ctx, identity)
	if err != nil {
		return nil, err
	}
	return p.Characters, nil
}

// GetPlayer reads the record in a single read transaction.
func (r *sqlPlayerRepository) GetPlayer(ctx context.Context, identity string) (*model.PlayerRecord, error) {
	var record *model.PlayerRecord
	err := r.inTx(ctx, "get_player", identity, func(tx *sql.Tx) error {
		var err error
		record, err = r.load(ctx, tx, "get_player", identity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetStats returns table counts and the latest login.
func (r *sqlPlayerRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"backend": r.d.name}

	counts := []struct {
		key   string
		query string
	}{
		{"total_players", "SELECT COUNT(*) FROM players"},
		{"total_characters", "SELECT COUNT(*) FROM player_characters"},
		{"total_inventory_items", "SELECT COUNT(*) FROM player_inventory"},
	}
	for _, c := range counts {
		var n int64
		if err := r.db.QueryRowContext(ctx, c.query).Scan(&n); err != nil {
			return nil, storageError("stats", "", err)
		}
		stats[c.key] = n
	}

	var last sql.NullInt64
	if err := r.db.QueryRowContext(ctx, "SELECT MAX(last_login) FROM players").Scan(&last); err == nil && last.Valid {
		stats["last_login"] = time.UnixMicro(last.Int64).UTC()
	}

	dbStats := r.db.Stats()
	stats["open_connections"] = dbStats.OpenConnections
	stats["in_use_connections"] = dbStats.InUse

	return stats, nil
}

// Ping checks the database connection.
func (r *sqlPlayerRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *sqlPlayerRepository) Close() error {
	return r.db.Close()
}

func (r *sqlPlayerRepository) mustExist(ctx context.Context, tx *sql.Tx, op, identity string) error {
	var n int
	if err := tx.QueryRowContext(ctx, r.q(existsQuery), identity).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return notFound(op, identity)
	}
	return nil
}

func (r *sqlPlayerRepository) load(ctx context.Context, tx *sql.Tx, op, identity string) (*model.PlayerRecord, error) {
	var (
		p                    model.PlayerRecord
		createdAt, lastLogin int64
	)
	err := tx.QueryRowContext(ctx, r.q(selectPlayerQuery), identity).
		Scan(&p.Identity, &p.DisplayName, &createdAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(op, identity)
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.UnixMicro(createdAt).UTC()
	p.LastLogin = time.UnixMicro(lastLogin).UTC()

	if p.Characters, err = r.column(ctx, tx, selectCharactersQuery, identity); err != nil {
		return nil, err
	}
	if p.Inventory, err = r.column(ctx, tx, selectInventoryQuery, identity); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *sqlPlayerRepository) column(ctx context.Context, tx *sql.Tx, query, identity string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, r.q(query), identity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
