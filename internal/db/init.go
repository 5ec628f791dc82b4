// Package db opens the relational store behind the image repository and
// creates its schema.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	_ "modernc.org/sqlite"             // registers the pure-Go "sqlite" driver
)

// Driver names accepted by Open.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS images (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    filename     TEXT NOT NULL,
    storage_key  TEXT NOT NULL DEFAULT '',
    content_type TEXT NOT NULL DEFAULT '',
    size         INTEGER NOT NULL DEFAULT 0,
    caption      TEXT NOT NULL,
    embedding    BLOB NOT NULL
);
`

// sqliteColumns are added to tables created by older releases that only had
// (id, filename, caption, embedding).
var sqliteColumns = []struct{ name, ddl string }{
	{"storage_key", "ALTER TABLE images ADD COLUMN storage_key TEXT NOT NULL DEFAULT ''"},
	{"content_type", "ALTER TABLE images ADD COLUMN content_type TEXT NOT NULL DEFAULT ''"},
	{"size", "ALTER TABLE images ADD COLUMN size INTEGER NOT NULL DEFAULT 0"},
}

func postgresSchema(dim int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS images (
    id           BIGSERIAL PRIMARY KEY,
    filename     TEXT NOT NULL,
    storage_key  TEXT NOT NULL,
    content_type TEXT NOT NULL,
    size         BIGINT NOT NULL,
    caption      TEXT NOT NULL,
    embedding    vector(%d),
    created_at   TIMESTAMPTZ DEFAULT NOW()
);
`, dim)
}

// Open connects to the database for driver and makes sure the images table
// exists. dim is the embedding dimension of the deployment; Postgres pins it
// in the vector column type.
func Open(ctx context.Context, driver, dsn string, dim int) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case SQLite:
		db, err = sql.Open("sqlite", dsn)
	case Postgres:
		db, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if driver == SQLite {
		// A single connection keeps ":memory:" databases shared across
		// queries and serializes writers.
		db.SetMaxOpenConns(1)
	}

	if err := Migrate(ctx, db, driver, dim); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the images table and adds columns missing from older
// SQLite databases.
func Migrate(ctx context.Context, db *sql.DB, driver string, dim int) error {
	switch driver {
	case Postgres:
		if _, err := db.ExecContext(ctx, postgresSchema(dim)); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		return nil
	case SQLite:
		if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		for _, col := range sqliteColumns {
			var n int
			err := db.QueryRowContext(ctx,
				"SELECT COUNT(*) FROM pragma_table_info('images') WHERE name = ?", col.name,
			).Scan(&n)
			if err != nil {
				return fmt.Errorf("check column %s: %w", col.name, err)
			}
			if n > 0 {
				continue
			}
			if _, err := db.ExecContext(ctx, col.ddl); err != nil {
				return fmt.Errorf("add column %s: %w", col.name, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported driver %q", driver)
	}
}
