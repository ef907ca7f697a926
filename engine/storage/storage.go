// Copyright 2025 Slidesmith
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage provides the embedded SQLite store backing the
// credential store and the stats repository. All writers serialize at the
// SQLite transaction boundary; readers never observe uncommitted rows.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps the embedded database handle.
type Store struct {
	db *sql.DB
}

// migrations are idempotent and run on every Open.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS credentials (
		provider   TEXT PRIMARY KEY,
		secret_enc BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL,
		rotated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS generation_results (
		request_id        TEXT PRIMARY KEY,
		provider          TEXT NOT NULL DEFAULT '',
		model             TEXT NOT NULL DEFAULT '',
		operation         TEXT NOT NULL DEFAULT '',
		deck              TEXT NOT NULL DEFAULT '',
		attempts          INTEGER NOT NULL DEFAULT 0,
		outcome           TEXT NOT NULL,
		content           TEXT NOT NULL DEFAULT '',
		prompt_tokens     INTEGER NOT NULL DEFAULT 0,
		completion_tokens INTEGER NOT NULL DEFAULT 0,
		cost_micro_usd    INTEGER NOT NULL DEFAULT 0,
		currency          TEXT NOT NULL DEFAULT '',
		pricing_version   TEXT NOT NULL DEFAULT '',
		latency_ms        INTEGER NOT NULL DEFAULT 0,
		started_at        TIMESTAMP NOT NULL,
		finished_at       TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_generation_results_started_at
		ON generation_results (started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_generation_results_provider
		ON generation_results (provider)`,
}

// Open opens (creating if necessary) the database at path and applies
// migrations. Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		// WAL keeps readers unblocked while a writer commits; the busy
		// timeout makes concurrent writers queue instead of failing.
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc sqlite is in-process; a single connection avoids
	// SQLITE_BUSY on concurrent writers for the in-memory DSN too.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping verifies the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
