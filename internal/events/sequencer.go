// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/actorvault/actorvault/internal/logging"
	"github.com/actorvault/actorvault/internal/metrics"
	"github.com/actorvault/actorvault/internal/repo"
)

// SequencingError reports a failed event publish.
type SequencingError struct {
	Kind string
	DID  string
	Err  error
}

func (e *SequencingError) Error() string {
	return fmt.Sprintf("sequence %s event for %s: %v", e.Kind, e.DID, e.Err)
}

func (e *SequencingError) Unwrap() error {
	return e.Err
}

// Sequencer emits change events for downstream consumers. Callers that
// need ordering between events invoke the methods sequentially; each call
// returns only after the publish completed or failed.
type Sequencer interface {
	SequenceIdentityChange(ctx context.Context, did, handle string) error
	SequenceCommit(ctx context.Context, did string, commit repo.Commit) error
}

// PublisherSequencer publishes events through a watermill publisher.
type PublisherSequencer struct {
	pub message.Publisher
}

// NewSequencer creates a sequencer over the given publisher.
func NewSequencer(pub message.Publisher) *PublisherSequencer {
	return &PublisherSequencer{pub: pub}
}

// SequenceIdentityChange publishes an identity change event for did.
func (s *PublisherSequencer) SequenceIdentityChange(ctx context.Context, did, handle string) error {
	return s.publish(ctx, NewIdentityEvent(did, handle))
}

// SequenceCommit publishes a commit event for did.
func (s *PublisherSequencer) SequenceCommit(ctx context.Context, did string, commit repo.Commit) error {
	return s.publish(ctx, NewCommitEvent(did, commit.CID.String(), commit.Rev))
}

func (s *PublisherSequencer) publish(ctx context.Context, event *Event) error {
	data, err := SerializeEvent(event)
	if err != nil {
		return &SequencingError{Kind: event.Kind, DID: event.DID, Err: err}
	}

	msg := message.NewMessage(event.EventID, data)
	msg.SetContext(ctx)
	msg.Metadata.Set("kind", event.Kind)
	msg.Metadata.Set("did", event.DID)

	if err := s.pub.Publish(event.Topic(), msg); err != nil {
		metrics.EventPublishFailures.Inc()
		return &SequencingError{Kind: event.Kind, DID: event.DID, Err: err}
	}

	metrics.RecordEventSequenced(event.Kind)
	logging.Debug().Str("did", event.DID).Str("kind", event.Kind).Str("event_id", event.EventID).Msg("Event sequenced")
	return nil
}

// NoopSequencer discards events. Used when event processing is disabled;
// sequencing then never fails, so recovery proceeds without a firehose.
type NoopSequencer struct{}

func (NoopSequencer) SequenceIdentityChange(_ context.Context, did, _ string) error {
	logging.Debug().Str("did", did).Msg("Event processing disabled, identity event dropped")
	return nil
}

func (NoopSequencer) SequenceCommit(_ context.Context, did string, _ repo.Commit) error {
	logging.Debug().Str("did", did).Msg("Event processing disabled, commit event dropped")
	return nil
}
