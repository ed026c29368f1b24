// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

// Package accounts is the service-wide account directory: one SQLite
// database mapping each tenant DID to its handle and current commit-log
// root. The directory outlives individual actor stores, which is what
// makes recovery possible after a store is lost.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// SQLite driver registration.
	_ "github.com/mattn/go-sqlite3"

	"github.com/actorvault/actorvault/internal/logging"
)

// ErrAccountNotFound indicates the DID has no account row.
var ErrAccountNotFound = errors.New("account not found")

// Account is one tenant's directory row.
type Account struct {
	DID       string
	Handle    string
	RepoRoot  string
	RepoRev   string
	CreatedAt time.Time
}

// Directory provides access to the account database.
type Directory struct {
	db *sql.DB
}

// Open opens or creates the account database at path.
func Open(path string) (*Directory, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create account db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open account db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &Directory{db: db}
	if err := d.init(context.Background()); err != nil {
		closeQuietly(db)
		return nil, err
	}
	return d, nil
}

func (d *Directory) init(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, q := range pragmas {
		if _, err := d.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("set pragma %q: %w", q, err)
		}
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS accounts (
			did        TEXT PRIMARY KEY,
			handle     TEXT NOT NULL DEFAULT '',
			repo_root  TEXT NOT NULL DEFAULT '',
			repo_rev   TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create accounts schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (d *Directory) Close() error {
	return d.db.Close()
}

// Ping verifies the database connection.
func (d *Directory) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// GetAccount returns the account row for did.
func (d *Directory) GetAccount(ctx context.Context, did string) (*Account, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT did, handle, repo_root, repo_rev, created_at
		FROM accounts WHERE did = ?`, did)

	var a Account
	err := row.Scan(&a.DID, &a.Handle, &a.RepoRoot, &a.RepoRev, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, did)
	}
	if err != nil {
		return nil, fmt.Errorf("query account %s: %w", did, err)
	}
	return &a, nil
}

// CreateAccount inserts a new account row.
func (d *Directory) CreateAccount(ctx context.Context, did, handle string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO accounts (did, handle) VALUES (?, ?)`, did, handle)
	if err != nil {
		return fmt.Errorf("create account %s: %w", did, err)
	}
	return nil
}

// UpdateRepoRoot sets the current commit-log root and revision for did.
func (d *Directory) UpdateRepoRoot(ctx context.Context, did, root, rev string) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE accounts SET repo_root = ?, repo_rev = ? WHERE did = ?`, root, rev, did)
	if err != nil {
		return fmt.Errorf("update repo root for %s: %w", did, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update repo root for %s: %w", did, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, did)
	}
	return nil
}

// closeQuietly closes a resource in an error path where the Close error
// is not actionable.
func closeQuietly(db *sql.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close account db")
	}
}
