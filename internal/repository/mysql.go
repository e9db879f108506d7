package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/samber/oops"
)

// Character names use a binary collation so "cat" and "Cat" are distinct, as in every other backend.
var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS players (
			identity     VARCHAR(128) NOT NULL PRIMARY KEY,
			display_name VARCHAR(512) NOT NULL,
			created_at   BIGINT NOT NULL,
			last_login   BIGINT NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS player_characters (
			id       BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			identity VARCHAR(128) NOT NULL,
			name     VARCHAR(191) COLLATE utf8mb4_bin NOT NULL,
			UNIQUE KEY uq_player_character (identity, name),
			CONSTRAINT fk_character_player FOREIGN KEY (identity) REFERENCES players(identity)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS player_inventory (
			id       BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			identity VARCHAR(128) NOT NULL,
			item_id  VARCHAR(512) NOT NULL,
			KEY idx_player_inventory_identity (identity, id),
			CONSTRAINT fk_inventory_player FOREIGN KEY (identity) REFERENCES players(identity)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	insertPlayer:    `INSERT INTO players (identity, display_name, created_at, last_login) VALUES (?, ?, ?, ?) ON DUPLICATE KEY UPDATE identity = identity`,
	touchLogin:      `UPDATE players SET display_name = ?, last_login = GREATEST(last_login, ?) WHERE identity = ?`,
	insertCharacter: `INSERT INTO player_characters (identity, name) VALUES (?, ?) ON DUPLICATE KEY UPDATE identity = identity`,
}

// mysqlConfig parses dsn. A no-op duplicate-key update must report zero affected rows,
// so clientFoundRows is always off.
func mysqlConfig(dsn string) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").In("repository").Wrapf(err, "invalid MySQL DSN")
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = false
	return cfg, nil
}

// MySQLPlayerRepository stores players in MySQL.
type MySQLPlayerRepository struct {
	*sqlPlayerRepository
}

// NewMySQLPlayerRepository connects and creates the schema.
// dsn format: "user:password@tcp(host:port)/dbname"
func NewMySQLPlayerRepository(ctx context.Context, dsn string, opts ...Option) (*MySQLPlayerRepository, error) {
	cfg, err := mysqlConfig(dsn)
	if err != nil {
		return nil, err
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, oops.Code("STORAGE_FAILURE").In("repository").Wrapf(err, "failed to open MySQL")
	}
	db := sql.OpenDB(connector)

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, oops.Code("STORAGE_FAILURE").In("repository").With("addr", cfg.Addr).Wrapf(err, "failed to ping MySQL")
	}

	o := buildOptions("mysql", opts)
	base, err := newSQLPlayerRepository(ctx, db, mysqlDialect, o)
	if err != nil {
		db.Close()
		return nil, err
	}

	o.logger.InfoContext(ctx, "mysql player store ready", "addr", cfg.Addr, "db", cfg.DBName)
	return &MySQLPlayerRepository{sqlPlayerRepository: base}, nil
}

var _ PlayerRepository = (*MySQLPlayerRepository)(nil)
