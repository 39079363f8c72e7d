// SPDX-License-Identifier: MIT

// Package sqlite opens SQLite provider databases with consistent pragmas.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver
)

// Config defines SQLite operational parameters.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
	// ReadOnly opens the database without write access. Provider tables
	// are owned by an external system and only read here.
	ReadOnly bool
}

// DefaultConfig returns the configuration used for provider databases.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 4,
		ReadOnly:     true,
	}
}

// DSN builds a modernc.org/sqlite DSN that applies the pragmas to every
// pooled connection.
func DSN(dbPath string, cfg Config) string {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(ON)", dbPath, cfg.BusyTimeout.Milliseconds())
	if cfg.ReadOnly {
		return dsn + "&mode=ro"
	}
	return dsn + "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

// Open initializes a SQLite connection pool and checks connectivity.
func Open(dbPath string, cfg Config) (*sql.DB, error) {
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 1
	}
	db, err := sql.Open("sqlite", DSN(dbPath, cfg))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return db, nil
}
