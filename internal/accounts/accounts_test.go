// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package accounts

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestDirectory(t *testing.T) *Directory {
	t.Helper()

	d, err := Open(filepath.Join(t.TempDir(), "accounts.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return d
}

func TestGetAccountNotFound(t *testing.T) {
	t.Parallel()

	d := openTestDirectory(t)

	_, err := d.GetAccount(context.Background(), "did:plc:missing")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestCreateAndGetAccount(t *testing.T) {
	t.Parallel()

	d := openTestDirectory(t)
	ctx := context.Background()

	if err := d.CreateAccount(ctx, "did:plc:test1", "alice.example.com"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	a, err := d.GetAccount(ctx, "did:plc:test1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if a.DID != "did:plc:test1" {
		t.Errorf("DID = %q, want did:plc:test1", a.DID)
	}
	if a.Handle != "alice.example.com" {
		t.Errorf("Handle = %q, want alice.example.com", a.Handle)
	}
	if a.RepoRoot != "" {
		t.Errorf("new account RepoRoot = %q, want empty", a.RepoRoot)
	}
	if a.CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}
}

func TestUpdateRepoRoot(t *testing.T) {
	t.Parallel()

	d := openTestDirectory(t)
	ctx := context.Background()

	if err := d.CreateAccount(ctx, "did:plc:test1", "alice.example.com"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	if err := d.UpdateRepoRoot(ctx, "did:plc:test1", "abc123", "rev-1"); err != nil {
		t.Fatalf("UpdateRepoRoot: %v", err)
	}

	a, err := d.GetAccount(ctx, "did:plc:test1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if a.RepoRoot != "abc123" {
		t.Errorf("RepoRoot = %q, want abc123", a.RepoRoot)
	}
	if a.RepoRev != "rev-1" {
		t.Errorf("RepoRev = %q, want rev-1", a.RepoRev)
	}
}

func TestUpdateRepoRootMissingAccount(t *testing.T) {
	t.Parallel()

	d := openTestDirectory(t)

	err := d.UpdateRepoRoot(context.Background(), "did:plc:missing", "abc", "rev")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestDirectoryPing(t *testing.T) {
	t.Parallel()

	d := openTestDirectory(t)
	if err := d.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
