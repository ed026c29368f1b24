// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package identity

import (
	"errors"
	"sort"
	"strings"
	"testing"
)

func TestValidateDID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		did     string
		wantErr bool
	}{
		{"valid plc", "did:plc:ewvi7nxzyoun6zhxrhs64oiz", false},
		{"valid short plc", "did:plc:test1", false},
		{"valid web", "did:web:example.com", false},
		{"missing prefix", "plc:test1", true},
		{"empty", "", true},
		{"no suffix", "did:plc:", true},
		{"no method", "did::test1", true},
		{"unsupported method", "did:ion:test1", true},
		{"uppercase suffix", "did:plc:TEST1", true},
		{"space in suffix", "did:plc:te st", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateDID(tt.did)
			if tt.wantErr && err == nil {
				t.Errorf("ValidateDID(%q) = nil, want error", tt.did)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateDID(%q) = %v, want nil", tt.did, err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrInvalidDID) {
				t.Errorf("error %v does not wrap ErrInvalidDID", err)
			}
		})
	}
}

func TestShardDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		did  string
		want string
	}{
		{"did:plc:ewvi7nxzyoun6zhxrhs64oiz", "ew"},
		{"did:plc:test1", "te"},
		{"did:plc:a", "a"},
		{"not-a-did", ""},
	}

	for _, tt := range tests {
		if got := ShardDir(tt.did); got != tt.want {
			t.Errorf("ShardDir(%q) = %q, want %q", tt.did, got, tt.want)
		}
	}
}

func TestHashContentDeterministic(t *testing.T) {
	t.Parallel()

	a := HashContent([]byte("hello"))
	b := HashContent([]byte("hello"))
	c := HashContent([]byte("world"))

	if a != b {
		t.Error("same input produced different content ids")
	}
	if a == c {
		t.Error("different inputs produced the same content id")
	}
	if a.IsZero() {
		t.Error("hash of non-empty input is zero")
	}
	if len(a.String()) != ContentIDSize*2 {
		t.Errorf("hex form length = %d, want %d", len(a.String()), ContentIDSize*2)
	}
}

func TestContentIDRoundTrip(t *testing.T) {
	t.Parallel()

	orig := HashContent([]byte("round trip"))
	parsed, err := ParseContentID(orig.String())
	if err != nil {
		t.Fatalf("ParseContentID: %v", err)
	}
	if parsed != orig {
		t.Errorf("round trip mismatch: %s != %s", parsed, orig)
	}

	if _, err := ParseContentID("zzzz"); err == nil {
		t.Error("expected error for non-hex input")
	}
	if _, err := ParseContentID("abcd"); err == nil {
		t.Error("expected error for short input")
	}
}

func TestKeypairPEMRoundTrip(t *testing.T) {
	t.Parallel()

	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	pemBytes, err := kp.MarshalPEM()
	if err != nil {
		t.Fatalf("MarshalPEM: %v", err)
	}
	if !strings.Contains(string(pemBytes), "EC PRIVATE KEY") {
		t.Error("PEM output missing EC PRIVATE KEY block")
	}

	restored, err := ParseKeypairPEM(pemBytes)
	if err != nil {
		t.Fatalf("ParseKeypairPEM: %v", err)
	}
	if restored.PublicDID() != kp.PublicDID() {
		t.Error("restored keypair has different public DID")
	}
}

func TestKeypairSignVerify(t *testing.T) {
	t.Parallel()

	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	msg := []byte("commit payload")
	sig, err := kp.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !kp.Verify(msg, sig) {
		t.Error("signature did not verify")
	}
	if kp.Verify([]byte("tampered"), sig) {
		t.Error("signature verified against wrong message")
	}

	other, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	if other.Verify(msg, sig) {
		t.Error("signature verified under wrong key")
	}
}

func TestPublicDIDForm(t *testing.T) {
	t.Parallel()

	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	did := kp.PublicDID()
	if !strings.HasPrefix(did, "did:key:z") {
		t.Errorf("PublicDID = %q, want did:key:z prefix", did)
	}
	if len(did) < 40 {
		t.Errorf("PublicDID suspiciously short: %q", did)
	}
}

func TestBase58Encode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"Hello World!", "2NEpo7TZRRrLZSi2U"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := base58Encode([]byte(tt.input)); got != tt.want {
			t.Errorf("base58Encode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	// Leading zero bytes map to leading '1' characters.
	if got := base58Encode([]byte{0, 0, 1}); got != "112" {
		t.Errorf("base58Encode([0 0 1]) = %q, want %q", got, "112")
	}
}

func TestRevClockMonotonic(t *testing.T) {
	t.Parallel()

	clock := NewRevClock()

	revs := make([]string, 50)
	for i := range revs {
		revs[i] = clock.Next()
	}

	for i := 1; i < len(revs); i++ {
		if revs[i] <= revs[i-1] {
			t.Fatalf("rev %d (%s) not greater than rev %d (%s)", i, revs[i], i-1, revs[i-1])
		}
	}

	if !sort.StringsAreSorted(revs) {
		t.Error("revisions do not sort in issue order")
	}
	for _, r := range revs {
		if len(r) != revLen {
			t.Errorf("rev %q length = %d, want %d", r, len(r), revLen)
		}
	}
}
