// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package actorstore

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestScanStoresMissingRoot(t *testing.T) {
	t.Parallel()

	handles, err := ScanStores(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("ScanStores: %v", err)
	}
	if len(handles) != 0 {
		t.Errorf("got %d handles for missing root, want 0", len(handles))
	}
}

func TestScanStoresEmptyRoot(t *testing.T) {
	t.Parallel()

	handles, err := ScanStores(t.TempDir())
	if err != nil {
		t.Fatalf("ScanStores: %v", err)
	}
	if len(handles) != 0 {
		t.Errorf("got %d handles for empty root, want 0", len(handles))
	}
}

func TestScanStoresFindsProvisionedStores(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()

	dids := []string{"did:plc:alpha1", "did:plc:bravo2", "did:plc:zzulu3"}
	for _, did := range dids {
		if _, err := m.Create(ctx, did, mustGenerateKeypair(t)); err != nil {
			t.Fatalf("Create %s: %v", did, err)
		}
	}

	handles, err := ScanStores(m.Root())
	if err != nil {
		t.Fatalf("ScanStores: %v", err)
	}
	if len(handles) != len(dids) {
		t.Fatalf("got %d handles, want %d", len(handles), len(dids))
	}

	got := make([]string, len(handles))
	for i, h := range handles {
		got[i] = h.DID
	}
	want := []string{"did:plc:alpha1", "did:plc:bravo2", "did:plc:zzulu3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DIDs = %v, want %v", got, want)
	}
}

func TestScanStoresIgnoresJunk(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()
	root := m.Root()

	if _, err := m.Create(ctx, "did:plc:test1", mustGenerateKeypair(t)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A stray file at the root, a stray file inside a shard, and a
	// tenant directory without a store database.
	if err := os.WriteFile(filepath.Join(root, "README"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "te", "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	emptyTenant := filepath.Join(root, "ab", "did:plc:abandoned")
	if err := os.MkdirAll(emptyTenant, 0o755); err != nil {
		t.Fatal(err)
	}

	// The reserved pool sits alongside shards and is skipped naturally.
	if _, err := m.ReserveKeypair("did:plc:test1"); err != nil {
		t.Fatalf("ReserveKeypair: %v", err)
	}

	handles, err := ScanStores(root)
	if err != nil {
		t.Fatalf("ScanStores: %v", err)
	}
	if len(handles) != 1 {
		t.Fatalf("got %d handles, want 1", len(handles))
	}
	if handles[0].DID != "did:plc:test1" {
		t.Errorf("DID = %q, want did:plc:test1", handles[0].DID)
	}
}

func TestScanStoresDeterministic(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()

	for _, did := range []string{"did:plc:mike44", "did:plc:alpha1", "did:plc:tango9"} {
		if _, err := m.Create(ctx, did, mustGenerateKeypair(t)); err != nil {
			t.Fatalf("Create %s: %v", did, err)
		}
	}

	first, err := ScanStores(m.Root())
	if err != nil {
		t.Fatalf("ScanStores: %v", err)
	}
	second, err := ScanStores(m.Root())
	if err != nil {
		t.Fatalf("ScanStores: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("two scans of an unchanged tree differ")
	}

	for i := 1; i < len(first); i++ {
		if first[i-1].DBPath >= first[i].DBPath {
			t.Errorf("handles not sorted: %q before %q", first[i-1].DBPath, first[i].DBPath)
		}
	}
}
