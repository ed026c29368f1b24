// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package repo

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/actorvault/actorvault/internal/actorstore"
	"github.com/actorvault/actorvault/internal/identity"
)

func setupStore(t *testing.T) (*actorstore.Manager, string, *identity.Keypair) {
	t.Helper()

	m := actorstore.NewManager(t.TempDir())
	did := "did:plc:test1"

	kp, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	if _, err := m.Create(context.Background(), did, kp); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return m, did, kp
}

func TestInitEmptyWritesOneCommitZeroRecords(t *testing.T) {
	t.Parallel()

	m, did, kp := setupStore(t)
	ctx := context.Background()
	clock := identity.NewRevClock()

	var commit Commit
	err := m.Transact(ctx, did, func(tx *sql.Tx) error {
		var err error
		commit, err = InitEmpty(ctx, tx, did, kp, clock)
		return err
	})
	if err != nil {
		t.Fatalf("InitEmpty: %v", err)
	}

	if commit.CID.IsZero() {
		t.Error("commit CID is zero")
	}
	if commit.Rev == "" {
		t.Error("commit Rev is empty")
	}
	if commit.EntryCount != 0 {
		t.Errorf("EntryCount = %d, want 0", commit.EntryCount)
	}

	err = m.Transact(ctx, did, func(tx *sql.Tx) error {
		commits, err := CountCommits(ctx, tx)
		if err != nil {
			return err
		}
		if commits != 1 {
			t.Errorf("commit count = %d, want 1", commits)
		}
		records, err := CountRecords(ctx, tx)
		if err != nil {
			return err
		}
		if records != 0 {
			t.Errorf("record count = %d, want 0", records)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}
}

func TestRootMatchesInitEmpty(t *testing.T) {
	t.Parallel()

	m, did, kp := setupStore(t)
	ctx := context.Background()
	clock := identity.NewRevClock()

	var created Commit
	err := m.Transact(ctx, did, func(tx *sql.Tx) error {
		var err error
		created, err = InitEmpty(ctx, tx, did, kp, clock)
		return err
	})
	if err != nil {
		t.Fatalf("InitEmpty: %v", err)
	}

	var head Commit
	err = m.Transact(ctx, did, func(tx *sql.Tx) error {
		var err error
		head, err = Root(ctx, tx)
		return err
	})
	if err != nil {
		t.Fatalf("Root: %v", err)
	}

	if head.CID != created.CID {
		t.Errorf("head CID %s != created CID %s", head.CID, created.CID)
	}
	if head.Rev != created.Rev {
		t.Errorf("head Rev %s != created Rev %s", head.Rev, created.Rev)
	}
}

func TestRootOnEmptyLog(t *testing.T) {
	t.Parallel()

	m, did, _ := setupStore(t)
	ctx := context.Background()

	err := m.Transact(ctx, did, func(tx *sql.Tx) error {
		_, err := Root(ctx, tx)
		return err
	})
	if !errors.Is(err, ErrNoRoot) {
		t.Errorf("Root on empty log = %v, want ErrNoRoot", err)
	}
}

func TestVerifyHead(t *testing.T) {
	t.Parallel()

	m, did, kp := setupStore(t)
	ctx := context.Background()
	clock := identity.NewRevClock()

	err := m.Transact(ctx, did, func(tx *sql.Tx) error {
		_, err := InitEmpty(ctx, tx, did, kp, clock)
		return err
	})
	if err != nil {
		t.Fatalf("InitEmpty: %v", err)
	}

	err = m.Transact(ctx, did, func(tx *sql.Tx) error {
		return VerifyHead(ctx, tx, kp)
	})
	if err != nil {
		t.Errorf("VerifyHead with signing key: %v", err)
	}

	wrong, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	err = m.Transact(ctx, did, func(tx *sql.Tx) error {
		return VerifyHead(ctx, tx, wrong)
	})
	if err == nil {
		t.Error("VerifyHead with wrong key succeeded")
	}
}
