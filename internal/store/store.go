// Package store keeps the catalog and discount usage in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps sql.DB for the booking engine's content store.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

// NewDB opens the database at path and creates tables if they don't exist.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	l := logger.With().Str("component", "store").Logger()
	l.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: db, logger: &l}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS studios (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			calendar_id TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS pricing_packages (
			studio_id TEXT NOT NULL REFERENCES studios(id),
			duration_minutes INTEGER NOT NULL,
			duration_label TEXT NOT NULL,
			duration_hours REAL NOT NULL,
			base_price_pence INTEGER NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (studio_id, duration_minutes)
		)`,

		`CREATE TABLE IF NOT EXISTS add_ons (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			price_pence INTEGER NOT NULL,
			max_quantity INTEGER NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS discount_codes (
			code TEXT PRIMARY KEY,
			type TEXT NOT NULL CHECK (type IN ('percentage', 'fixed')),
			value INTEGER NOT NULL,
			min_booking_value_pence INTEGER,
			max_discount_pence INTEGER,
			usage_limit INTEGER,
			usage_count INTEGER NOT NULL DEFAULT 0,
			exclusive_email TEXT,
			valid_from DATETIME NOT NULL,
			valid_until DATETIME,
			applicable_studios TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS discount_redemptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL REFERENCES discount_codes(code),
			quote_id TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			discount_pence INTEGER NOT NULL,
			redeemed_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_packages_studio ON pricing_packages(studio_id, position)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_redemptions_quote ON discount_redemptions(quote_id)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}
