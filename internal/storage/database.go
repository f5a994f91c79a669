// Package storage handles data persistence: the classification ledger in a SQL
// database (SQLite or PostgreSQL) and the optional image archive on disk.
package storage

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // Blank import: registers the SQLite driver.
	// In Go, importing a package for its side effects (init function) is done
	// with `_`. Both packages register themselves as database/sql drivers.

	"github.com/fleveque/ecosort/internal/config"
)

// The ledger is a single append-only table. Each dialect gets its own DDL because
// auto-increment keys and timestamp types differ between SQLite and PostgreSQL.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS classifications (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    provider    TEXT NOT NULL,
    model       TEXT NOT NULL,
    item_name   TEXT,
    category    TEXT,
    confidence  REAL,
    success     BOOLEAN NOT NULL DEFAULT 0,
    error_kind  TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    image_path  TEXT,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_classifications_category ON classifications(category);
CREATE INDEX IF NOT EXISTS idx_classifications_created_at ON classifications(created_at);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS classifications (
    id          BIGSERIAL PRIMARY KEY,
    provider    TEXT NOT NULL,
    model       TEXT NOT NULL,
    item_name   TEXT,
    category    TEXT,
    confidence  DOUBLE PRECISION,
    success     BOOLEAN NOT NULL DEFAULT FALSE,
    error_kind  TEXT,
    duration_ms BIGINT NOT NULL DEFAULT 0,
    image_path  TEXT,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_classifications_category ON classifications(category);
CREATE INDEX IF NOT EXISTS idx_classifications_created_at ON classifications(created_at);
`

// NewDatabase opens the configured database and runs migrations.
// sqlx wraps database/sql with convenience methods like StructScan and Rebind.
//
// Key Go pattern: the constructor creates the resource AND validates it (Ping).
// If anything fails, we return an error and the caller decides what to do.
func NewDatabase(cfg config.StorageConfig) (*sqlx.DB, error) {
	switch cfg.Driver {
	case "", "sqlite3":
		return openSQLite(cfg.DatabasePath)
	case "pgx":
		return openPostgres(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}

func openSQLite(dbPath string) (*sqlx.DB, error) {
	// The DSN configures SQLite pragmas:
	// - WAL mode: allows concurrent reads while writing
	// - busy_timeout: wait up to 5s instead of failing on lock contention
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", dbPath)

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Ping actually opens the connection (Open is lazy in database/sql)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// SQLite performs best with a single writer connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

func openPostgres(url string) (*sqlx.DB, error) {
	if url == "" {
		return nil, fmt.Errorf("storage.database_url is required for the pgx driver")
	}

	db, err := sqlx.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Without arguments pgx uses the simple protocol, which accepts several statements.
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}
