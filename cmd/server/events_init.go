// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/actorvault/actorvault/internal/config"
	"github.com/actorvault/actorvault/internal/events"
	"github.com/actorvault/actorvault/internal/logging"
	"github.com/actorvault/actorvault/internal/repo"
)

// EventComponents bundles the change-event plumbing: the optional embedded
// NATS server, the JetStream stream, and the publisher. It implements
// events.Sequencer so the recovery saga can hold one handle across
// supervisor restarts of the underlying connection.
type EventComponents struct {
	cfg      config.EventsConfig
	storeDir string

	mu        sync.RWMutex
	server    *events.EmbeddedServer
	conn      *natsgo.Conn
	publisher *events.Publisher
	sequencer events.Sequencer
	running   bool
}

// InitEvents starts the event plumbing when events are enabled. Returns
// (nil, nil) when disabled; callers fall back to the NoopSequencer.
func InitEvents(ctx context.Context, cfg *config.Config) (*EventComponents, error) {
	if !cfg.Events.Enabled {
		logging.Info().Msg("Change-event sequencing disabled (EVENTS_ENABLED=false)")
		return nil, nil
	}

	components := &EventComponents{
		cfg:      cfg.Events,
		storeDir: cfg.EventsStoreDir(),
	}
	if err := components.Start(ctx); err != nil {
		return nil, err
	}
	return components, nil
}

// Start brings up the server, stream, and publisher. Idempotent: starting
// an already-running bundle is a no-op, so a supervisor restart after a
// transient Serve failure does not tear down healthy components.
func (c *EventComponents) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	url := c.cfg.URL
	if c.cfg.EmbeddedServer {
		serverCfg := events.DefaultServerConfig(c.storeDir)
		if c.cfg.MaxMemory > 0 {
			serverCfg.MaxMemory = c.cfg.MaxMemory
		}
		if c.cfg.MaxStore > 0 {
			serverCfg.MaxStore = c.cfg.MaxStore
		}

		server, err := events.NewEmbeddedServer(serverCfg)
		if err != nil {
			return fmt.Errorf("start embedded NATS server: %w", err)
		}
		c.server = server
		url = server.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	} else {
		logging.Info().Str("url", url).Msg("Using external NATS server")
	}

	conn, err := natsgo.Connect(url,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		c.teardown(ctx)
		return fmt.Errorf("connect to NATS: %w", err)
	}
	c.conn = conn

	streams, err := events.NewStreamManager(conn, events.DefaultStreamConfig())
	if err != nil {
		c.teardown(ctx)
		return err
	}

	ensureCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := streams.EnsureStream(ensureCtx); err != nil {
		c.teardown(ctx)
		return fmt.Errorf("ensure %s stream: %w", events.StreamName, err)
	}

	publisher, err := events.NewPublisher(events.DefaultPublisherConfig(url), events.NewLoggerAdapter())
	if err != nil {
		c.teardown(ctx)
		return err
	}
	c.publisher = publisher
	c.sequencer = events.NewSequencer(publisher)
	c.running = true

	logging.Info().Str("stream", events.StreamName).Msg("Change-event sequencer ready")
	return nil
}

// Shutdown stops the publisher, the connection, and the embedded server.
func (c *EventComponents) Shutdown(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardown(ctx)
}

// teardown closes whatever came up. Callers hold c.mu.
func (c *EventComponents) teardown(ctx context.Context) {
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close event publisher")
		}
		c.publisher = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			logging.Warn().Err(err).Msg("Embedded NATS server shutdown failed")
		}
		c.server = nil
	}
	c.sequencer = nil
	c.running = false
}

// IsRunning reports whether the bundle is up.
func (c *EventComponents) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.running {
		return false
	}
	if c.server != nil {
		return c.server.IsRunning()
	}
	return true
}

// SequenceIdentityChange implements events.Sequencer.
func (c *EventComponents) SequenceIdentityChange(ctx context.Context, did, handle string) error {
	s, err := c.currentSequencer("identity", did)
	if err != nil {
		return err
	}
	return s.SequenceIdentityChange(ctx, did, handle)
}

// SequenceCommit implements events.Sequencer.
func (c *EventComponents) SequenceCommit(ctx context.Context, did string, commit repo.Commit) error {
	s, err := c.currentSequencer("commit", did)
	if err != nil {
		return err
	}
	return s.SequenceCommit(ctx, did, commit)
}

func (c *EventComponents) currentSequencer(kind, did string) (events.Sequencer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sequencer == nil {
		return nil, &events.SequencingError{Kind: kind, DID: did, Err: errors.New("event components not running")}
	}
	return c.sequencer, nil
}
