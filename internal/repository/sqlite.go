package repository

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/samber/oops"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS players (
			identity     TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			created_at   INTEGER NOT NULL,
			last_login   INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS player_characters (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			identity TEXT NOT NULL REFERENCES players(identity),
			name     TEXT NOT NULL,
			UNIQUE (identity, name)
		)`,
		`CREATE TABLE IF NOT EXISTS player_inventory (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			identity TEXT NOT NULL REFERENCES players(identity),
			item_id  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_player_inventory_identity ON player_inventory(identity, id)`,
	},
	insertPlayer:    `INSERT INTO players (identity, display_name, created_at, last_login) VALUES (?, ?, ?, ?) ON CONFLICT(identity) DO NOTHING`,
	touchLogin:      `UPDATE players SET display_name = ?, last_login = max(last_login, ?) WHERE identity = ?`,
	insertCharacter: `INSERT INTO player_characters (identity, name) VALUES (?, ?) ON CONFLICT(identity, name) DO NOTHING`,
}

// SQLitePlayerRepository stores players in a local SQLite file.
// A single connection serializes writers; WAL keeps readers concurrent with it.
type SQLitePlayerRepository struct {
	*sqlPlayerRepository
}

// NewSQLitePlayerRepository opens or creates the database at dbPath (e.g. "./data/wildsats.db").
// ":memory:" opens a private in-memory database.
func NewSQLitePlayerRepository(ctx context.Context, dbPath string, opts ...Option) (*SQLitePlayerRepository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, oops.Code("STORAGE_FAILURE").In("repository").With("path", dbPath).Wrap(err)
		}
	}

	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, oops.Code("STORAGE_FAILURE").In("repository").With("path", dbPath).Wrapf(err, "failed to open SQLite")
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	o := buildOptions("sqlite", opts)
	base, err := newSQLPlayerRepository(ctx, db, sqliteDialect, o)
	if err != nil {
		db.Close()
		return nil, err
	}

	o.logger.InfoContext(ctx, "sqlite player store ready", "path", dbPath)
	return &SQLitePlayerRepository{sqlPlayerRepository: base}, nil
}

var _ PlayerRepository = (*SQLitePlayerRepository)(nil)
