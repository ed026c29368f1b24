// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package events

import (
	"strings"
	"testing"
)

func TestEventValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		event   *Event
		wantErr string
	}{
		{
			name:  "valid identity event",
			event: NewIdentityEvent("did:plc:alpha1", "alice.example.com"),
		},
		{
			name:  "valid commit event",
			event: NewCommitEvent("did:plc:alpha1", "deadbeef", "abc234"),
		},
		{
			name:    "missing event id",
			event:   &Event{Kind: KindIdentity, DID: "did:plc:alpha1"},
			wantErr: "event_id",
		},
		{
			name:    "unknown kind",
			event:   &Event{EventID: "e1", Kind: "mystery", DID: "did:plc:alpha1"},
			wantErr: "unknown kind",
		},
		{
			name:    "missing did",
			event:   &Event{EventID: "e1", Kind: KindIdentity},
			wantErr: "missing did",
		},
		{
			name:    "commit event without cid",
			event:   &Event{EventID: "e1", Kind: KindCommit, DID: "did:plc:alpha1"},
			wantErr: "commit_cid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	t.Parallel()

	orig := NewCommitEvent("did:plc:alpha1", "cafef00d", "abc234")
	data, err := SerializeEvent(orig)
	if err != nil {
		t.Fatalf("SerializeEvent: %v", err)
	}

	got, err := DeserializeEvent(data)
	if err != nil {
		t.Fatalf("DeserializeEvent: %v", err)
	}

	if got.EventID != orig.EventID {
		t.Errorf("EventID = %s, want %s", got.EventID, orig.EventID)
	}
	if got.Kind != KindCommit {
		t.Errorf("Kind = %s, want %s", got.Kind, KindCommit)
	}
	if got.DID != orig.DID {
		t.Errorf("DID = %s, want %s", got.DID, orig.DID)
	}
	if got.CommitCID != "cafef00d" || got.CommitRev != "abc234" {
		t.Errorf("commit fields = %s/%s, want cafef00d/abc234", got.CommitCID, got.CommitRev)
	}
	if got.Topic() != TopicCommit {
		t.Errorf("Topic() = %s, want %s", got.Topic(), TopicCommit)
	}
}

func TestSerializeRejectsInvalidEvent(t *testing.T) {
	t.Parallel()

	if _, err := SerializeEvent(&Event{EventID: "e1", Kind: "mystery", DID: "d"}); err == nil {
		t.Error("SerializeEvent should reject an invalid event")
	}
}
