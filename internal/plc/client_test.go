// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package plc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/actorvault/actorvault/internal/identity"
)

func TestUpdateSigningKeySubmitsSignedOperation(t *testing.T) {
	t.Parallel()

	rotation, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	newKey, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	const did = "did:plc:alpha1"

	var (
		gotPath        string
		gotMethod      string
		gotContentType string
		gotOp          signedOperation
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotOp); err != nil {
			t.Errorf("decode operation: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(server.URL)
	if err := client.UpdateSigningKey(context.Background(), did, rotation, newKey.PublicDID()); err != nil {
		t.Fatalf("UpdateSigningKey: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if want := "/did/" + did + "/sign-and-submit"; gotPath != want {
		t.Errorf("path = %s, want %s", gotPath, want)
	}
	if gotContentType != "application/json" {
		t.Errorf("content type = %s, want application/json", gotContentType)
	}
	if gotOp.DID != did {
		t.Errorf("operation did = %s, want %s", gotOp.DID, did)
	}
	if gotOp.Operation != opUpdateSigningKey {
		t.Errorf("operation = %s, want %s", gotOp.Operation, opUpdateSigningKey)
	}
	if gotOp.SigningKey != newKey.PublicDID() {
		t.Errorf("signingKey = %s, want %s", gotOp.SigningKey, newKey.PublicDID())
	}
	if gotOp.RotationKey != rotation.PublicDID() {
		t.Errorf("rotationKey = %s, want %s", gotOp.RotationKey, rotation.PublicDID())
	}

	sig := gotOp.Sig
	if len(sig) == 0 {
		t.Fatal("operation is unsigned")
	}
	gotOp.Sig = nil
	unsigned, err := json.Marshal(gotOp)
	if err != nil {
		t.Fatalf("re-encode operation: %v", err)
	}
	if !rotation.Verify(unsigned, sig) {
		t.Error("signature does not verify under the rotation key")
	}
}

func TestUpdateSigningKeyServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid operation", http.StatusBadRequest)
	}))
	defer server.Close()

	rotation, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	client := New(server.URL)
	err = client.UpdateSigningKey(context.Background(), "did:plc:alpha1", rotation, "did:key:zNew")
	if err == nil {
		t.Fatal("expected error for 400 response")
	}

	var due *DirectoryUpdateError
	if !errors.As(err, &due) {
		t.Fatalf("error type = %T, want *DirectoryUpdateError", err)
	}
	if due.DID != "did:plc:alpha1" {
		t.Errorf("error did = %s, want did:plc:alpha1", due.DID)
	}
}

func TestCircuitOpensAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	rotation, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	client := New(server.URL)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := client.UpdateSigningKey(ctx, "did:plc:alpha1", rotation, "did:key:zNew"); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if got := hits.Load(); got != 10 {
		t.Fatalf("server hits = %d, want 10", got)
	}

	err = client.UpdateSigningKey(ctx, "did:plc:alpha1", rotation, "did:key:zNew")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error after trip = %v, want gobreaker.ErrOpenState", err)
	}
	if got := hits.Load(); got != 10 {
		t.Errorf("server hits after trip = %d, want 10 (request must not reach the directory)", got)
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(server.URL)
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}

	down := New(server.URL + "/missing")
	if err := down.Ping(context.Background()); err == nil {
		t.Error("Ping against wrong path should fail")
	}
}
