// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

// Package actorstore manages the per-tenant SQLite stores on disk.
//
// Stores live under a two-level sharded layout:
//
//	<root>/<shard>/<did>/store.sqlite
//	<root>/<shard>/<did>/key.pem
//
// where <shard> is the first two characters of the DID's
// method-specific suffix. The package owns store creation, write
// transactions, signing-key files, and the reserved-keypair pool under
// <root>/reserved/. Discovery of existing stores is in discovery.go.
package actorstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	// SQLite driver registration.
	_ "github.com/mattn/go-sqlite3"

	"github.com/actorvault/actorvault/internal/identity"
	"github.com/actorvault/actorvault/internal/logging"
)

const (
	// StoreFileName is the database file inside each tenant directory.
	StoreFileName = "store.sqlite"

	// KeyFileName is the signing-key file inside each tenant directory.
	KeyFileName = "key.pem"

	reservedDirName = "reserved"
)

var (
	// ErrStoreExists indicates a Create for a DID that already has a store.
	ErrStoreExists = errors.New("actor store already exists")

	// ErrStoreNotFound indicates an operation on a DID with no store.
	ErrStoreNotFound = errors.New("actor store not found")

	// ErrNoReservedKeypair indicates a load of a reservation that does
	// not exist in the pool.
	ErrNoReservedKeypair = errors.New("no reserved keypair")
)

// Handle locates one tenant's store on disk.
type Handle struct {
	DID     string
	Dir     string
	DBPath  string
	KeyPath string
}

// Manager creates and opens actor stores under a fixed root directory.
type Manager struct {
	root string
}

// NewManager returns a manager rooted at root.
func NewManager(root string) *Manager {
	return &Manager{root: root}
}

// Root returns the actors root directory.
func (m *Manager) Root() string {
	return m.root
}

// HandleFor returns the on-disk locations for did without touching the
// filesystem.
func (m *Manager) HandleFor(did string) Handle {
	dir := filepath.Join(m.root, identity.ShardDir(did), did)
	return Handle{
		DID:     did,
		Dir:     dir,
		DBPath:  filepath.Join(dir, StoreFileName),
		KeyPath: filepath.Join(dir, KeyFileName),
	}
}

// Exists reports whether did has a store database on disk.
func (m *Manager) Exists(did string) bool {
	_, err := os.Stat(m.HandleFor(did).DBPath)
	return err == nil
}

// Create provisions a new store for did: the tenant directory, the
// signing-key file, and a WAL-mode database with the commit-log schema.
// Partial state from a failed Create is left in place.
func (m *Manager) Create(ctx context.Context, did string, kp *identity.Keypair) (Handle, error) {
	h := m.HandleFor(did)

	if m.Exists(did) {
		return h, fmt.Errorf("%w: %s", ErrStoreExists, did)
	}

	if err := os.MkdirAll(h.Dir, 0o755); err != nil {
		return h, fmt.Errorf("create store directory for %s: %w", did, err)
	}

	keyPEM, err := kp.MarshalPEM()
	if err != nil {
		return h, fmt.Errorf("encode signing key for %s: %w", did, err)
	}
	if err := os.WriteFile(h.KeyPath, keyPEM, 0o600); err != nil {
		return h, fmt.Errorf("write signing key for %s: %w", did, err)
	}

	db, err := openStore(h.DBPath)
	if err != nil {
		return h, fmt.Errorf("create store for %s: %w", did, err)
	}
	defer closeStore(db, did)

	if err := initSchema(ctx, db); err != nil {
		return h, fmt.Errorf("init store schema for %s: %w", did, err)
	}

	logging.Info().Str("did", did).Str("path", h.DBPath).Msg("Actor store created")
	return h, nil
}

// Transact opens did's store and runs fn inside a write transaction.
func (m *Manager) Transact(ctx context.Context, did string, fn func(tx *sql.Tx) error) error {
	h := m.HandleFor(did)
	if !m.Exists(did) {
		return fmt.Errorf("%w: %s", ErrStoreNotFound, did)
	}

	db, err := openStore(h.DBPath)
	if err != nil {
		return fmt.Errorf("open store for %s: %w", did, err)
	}
	defer closeStore(db, did)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin store tx for %s: %w", did, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.Warn().Err(rbErr).Str("did", did).Msg("Store rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit store tx for %s: %w", did, err)
	}
	return nil
}

// LoadKeypair reads did's signing key back from disk.
func (m *Manager) LoadKeypair(did string) (*identity.Keypair, error) {
	h := m.HandleFor(did)

	data, err := os.ReadFile(h.KeyPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, did)
	}
	if err != nil {
		return nil, fmt.Errorf("read signing key for %s: %w", did, err)
	}
	return identity.ParseKeypairPEM(data)
}

// openStore opens a store database with the write settings every caller
// needs: single connection, busy timeout, foreign keys, immediate
// transactions.
func openStore(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, q := range pragmas {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("set pragma %q: %w", q, err)
		}
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS repo_root (
			id  INTEGER PRIMARY KEY CHECK (id = 0),
			did TEXT NOT NULL,
			cid TEXT NOT NULL,
			rev TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS repo_entry (
			cid        TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			data       BLOB NOT NULL,
			rev        TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create store schema: %w", err)
	}
	return nil
}

// closeStore closes a store database and logs any error.
func closeStore(db *sql.DB, did string) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logging.Warn().Err(err).Str("did", did).Msg("Failed to close actor store")
	}
}
