package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/stardrift/server/internal/config"
)

// Connect opens and verifies a PostgreSQL connection pool from the
// database configuration.
func Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

// Migrate creates the schema when it does not exist yet. The server owns
// its tables; there is no external migration tooling.
func Migrate(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id            BIGSERIAL PRIMARY KEY,
			username      TEXT NOT NULL,
			email         TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL DEFAULT 'player',
			last_x        DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_y        DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_login    TIMESTAMPTZ,
			CONSTRAINT players_username_key UNIQUE (username),
			CONSTRAINT players_email_key UNIQUE (email)
		)`,
		`CREATE TABLE IF NOT EXISTS world_snapshots (
			id         BIGSERIAL PRIMARY KEY,
			seed       BIGINT NOT NULL,
			saved_at   TIMESTAMPTZ NOT NULL,
			data       BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS world_snapshots_saved_at_idx
			ON world_snapshots (saved_at DESC)`,
	}
	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}
	return nil
}
