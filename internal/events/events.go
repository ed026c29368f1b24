// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// SchemaVersion is the current event schema version.
// Increment this when making breaking changes to Event.
const SchemaVersion = 1

// Event kinds. Identity events announce a handle or key change for a
// tenant; commit events announce a new head commit in its content log.
const (
	KindIdentity = "identity"
	KindCommit   = "commit"
)

// Topics, one per event kind. Both match the VAULT_EVENTS stream's
// vault.events.> subject filter.
const (
	TopicIdentity = "vault.events.identity"
	TopicCommit   = "vault.events.commit"
)

// Event is the canonical change event emitted on the firehose. Downstream
// consumers treat the stream as the source of truth for identity changes,
// so identity events must always precede the commit events that depend on
// them.
type Event struct {
	// Schema version for forward/backward compatibility
	SchemaVersion int `json:"schema_version,omitempty"`

	EventID   string    `json:"event_id"`
	Kind      string    `json:"kind"` // identity, commit
	DID       string    `json:"did"`
	Timestamp time.Time `json:"timestamp"`

	// Identity fields
	Handle string `json:"handle,omitempty"`

	// Commit fields
	CommitCID string `json:"commit_cid,omitempty"`
	CommitRev string `json:"commit_rev,omitempty"`
}

// NewIdentityEvent creates an identity change event with a unique ID.
func NewIdentityEvent(did, handle string) *Event {
	return &Event{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		Kind:          KindIdentity,
		DID:           did,
		Timestamp:     time.Now().UTC(),
		Handle:        handle,
	}
}

// NewCommitEvent creates a commit event with a unique ID.
func NewCommitEvent(did, commitCID, commitRev string) *Event {
	return &Event{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		Kind:          KindCommit,
		DID:           did,
		Timestamp:     time.Now().UTC(),
		CommitCID:     commitCID,
		CommitRev:     commitRev,
	}
}

// Topic returns the publish topic for the event's kind.
func (e *Event) Topic() string {
	if e.Kind == KindIdentity {
		return TopicIdentity
	}
	return TopicCommit
}

// Validate checks required fields and returns an error if validation fails.
func (e *Event) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event missing event_id")
	}
	if e.Kind != KindIdentity && e.Kind != KindCommit {
		return fmt.Errorf("event %s: unknown kind %q", e.EventID, e.Kind)
	}
	if e.DID == "" {
		return fmt.Errorf("event %s: missing did", e.EventID)
	}
	if e.Kind == KindCommit && e.CommitCID == "" {
		return fmt.Errorf("event %s: commit event missing commit_cid", e.EventID)
	}
	return nil
}

// SerializeEvent validates and marshals an event to JSON.
func SerializeEvent(event *Event) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// DeserializeEvent unmarshals JSON to an event.
func DeserializeEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &event, nil
}
