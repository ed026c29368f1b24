// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package actorstore

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/actorvault/actorvault/internal/identity"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(t.TempDir())
}

func mustGenerateKeypair(t *testing.T) *identity.Keypair {
	t.Helper()
	kp, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	return kp
}

func TestHandleForLayout(t *testing.T) {
	t.Parallel()

	m := NewManager("/data/actors")
	h := m.HandleFor("did:plc:ewvi7nxzyoun6zhxrhs64oiz")

	wantDir := filepath.Join("/data/actors", "ew", "did:plc:ewvi7nxzyoun6zhxrhs64oiz")
	if h.Dir != wantDir {
		t.Errorf("Dir = %q, want %q", h.Dir, wantDir)
	}
	if h.DBPath != filepath.Join(wantDir, "store.sqlite") {
		t.Errorf("DBPath = %q", h.DBPath)
	}
	if h.KeyPath != filepath.Join(wantDir, "key.pem") {
		t.Errorf("KeyPath = %q", h.KeyPath)
	}
}

func TestCreateAndExists(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()
	did := "did:plc:test1"

	if m.Exists(did) {
		t.Fatal("Exists true before Create")
	}

	h, err := m.Create(ctx, did, mustGenerateKeypair(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !m.Exists(did) {
		t.Error("Exists false after Create")
	}

	info, err := os.Stat(h.KeyPath)
	if err != nil {
		t.Fatalf("stat key file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("key file mode = %o, want 600", info.Mode().Perm())
	}

	_, err = m.Create(ctx, did, mustGenerateKeypair(t))
	if !errors.Is(err, ErrStoreExists) {
		t.Errorf("second Create = %v, want ErrStoreExists", err)
	}
}

func TestTransactPersists(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()
	did := "did:plc:test1"

	if _, err := m.Create(ctx, did, mustGenerateKeypair(t)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	err := m.Transact(ctx, did, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO repo_entry (cid, kind, data, rev)
			VALUES ('cid-1', 'commit', X'00', 'rev-1')`)
		return err
	})
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}

	var count int
	err = m.Transact(ctx, did, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM repo_entry`).Scan(&count)
	})
	if err != nil {
		t.Fatalf("Transact read: %v", err)
	}
	if count != 1 {
		t.Errorf("entry count = %d, want 1", count)
	}
}

func TestTransactRollsBackOnError(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()
	did := "did:plc:test1"

	if _, err := m.Create(ctx, did, mustGenerateKeypair(t)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	failErr := errors.New("deliberate failure")
	err := m.Transact(ctx, did, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO repo_entry (cid, kind, data, rev)
			VALUES ('cid-1', 'commit', X'00', 'rev-1')`); err != nil {
			return err
		}
		return failErr
	})
	if !errors.Is(err, failErr) {
		t.Fatalf("Transact = %v, want deliberate failure", err)
	}

	var count int
	err = m.Transact(ctx, did, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM repo_entry`).Scan(&count)
	})
	if err != nil {
		t.Fatalf("Transact read: %v", err)
	}
	if count != 0 {
		t.Errorf("entry count after rollback = %d, want 0", count)
	}
}

func TestTransactMissingStore(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	err := m.Transact(context.Background(), "did:plc:missing", func(tx *sql.Tx) error {
		return nil
	})
	if !errors.Is(err, ErrStoreNotFound) {
		t.Errorf("Transact = %v, want ErrStoreNotFound", err)
	}
}

func TestLoadKeypairRoundTrip(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()
	did := "did:plc:test1"
	kp := mustGenerateKeypair(t)

	if _, err := m.Create(ctx, did, kp); err != nil {
		t.Fatalf("Create: %v", err)
	}

	loaded, err := m.LoadKeypair(did)
	if err != nil {
		t.Fatalf("LoadKeypair: %v", err)
	}
	if loaded.PublicDID() != kp.PublicDID() {
		t.Error("loaded keypair has different public DID")
	}

	if _, err := m.LoadKeypair("did:plc:missing"); !errors.Is(err, ErrStoreNotFound) {
		t.Errorf("LoadKeypair missing = %v, want ErrStoreNotFound", err)
	}
}

func TestReservedKeypairLifecycle(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	did := "did:plc:test1"

	keyID, err := m.ReserveKeypair(did)
	if err != nil {
		t.Fatalf("ReserveKeypair: %v", err)
	}
	if !m.HasReservedKeypair(keyID) {
		t.Error("reservation not found after ReserveKeypair")
	}

	if err := m.ClearReservedKeypair(keyID, did); err != nil {
		t.Fatalf("ClearReservedKeypair: %v", err)
	}
	if m.HasReservedKeypair(keyID) {
		t.Error("reservation still present after clear")
	}

	// Clearing an absent reservation is not an error.
	if err := m.ClearReservedKeypair(keyID, did); err != nil {
		t.Errorf("second ClearReservedKeypair = %v, want nil", err)
	}
}
