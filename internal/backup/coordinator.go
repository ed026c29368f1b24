// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package backup

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/actorvault/actorvault/internal/actorstore"
	"github.com/actorvault/actorvault/internal/logging"
	"github.com/actorvault/actorvault/internal/metrics"
	"github.com/actorvault/actorvault/internal/replication"
)

// ObjectPutter uploads a local file to a key in object storage.
type ObjectPutter interface {
	Put(ctx context.Context, localPath, key string) error
}

// CoordinatorConfig assembles a Coordinator's collaborators.
type CoordinatorConfig struct {
	// ActorsRoot is the directory scanned for tenant stores.
	ActorsRoot string

	// Interval is the sleep between passes.
	Interval time.Duration

	Store      ObjectPutter
	Snapshots  *Engine
	Keys       *TrackedSet
	Databases  *TrackedSet
	Replicated *ReplicatedSet
}

// Status is a point-in-time view of coordinator progress for the admin
// API.
type Status struct {
	LastPass        time.Time `json:"last_pass"`
	LastPassStores  int       `json:"last_pass_stores"`
	LastPassErrors  int       `json:"last_pass_errors"`
	TrackedKeys     int       `json:"tracked_keys"`
	TrackedDBs      int       `json:"tracked_dbs"`
	ReplicatedPaths int       `json:"replicated_paths"`
}

// Coordinator runs the periodic backup loop. One instance runs per
// process as a supervised service; passes are strictly sequential and a
// pass in flight always completes, shutdown waits at most one pass.
type Coordinator struct {
	root       string
	interval   time.Duration
	store      ObjectPutter
	snapshots  *Engine
	keys       *TrackedSet
	dbs        *TrackedSet
	replicated *ReplicatedSet

	mu     sync.Mutex
	status Status
}

// NewCoordinator builds a coordinator from cfg.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	return &Coordinator{
		root:       cfg.ActorsRoot,
		interval:   cfg.Interval,
		store:      cfg.Store,
		snapshots:  cfg.Snapshots,
		keys:       cfg.Keys,
		dbs:        cfg.Databases,
		replicated: cfg.Replicated,
	}
}

// Serve implements suture.Service. It runs one pass immediately, then
// one per interval, until ctx is cancelled. Cancellation is only
// observed between passes; the pass context is detached so in-flight
// snapshots and uploads finish cleanly.
func (c *Coordinator) Serve(ctx context.Context) error {
	logging.Info().
		Str("root", c.root).
		Dur("interval", c.interval).
		Int("replicated", c.replicated.Len()).
		Msg("Backup coordinator started")

	c.runPass(context.WithoutCancel(ctx))

	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Backup coordinator stopped")
			return ctx.Err()
		case <-timer.C:
			c.runPass(context.WithoutCancel(ctx))
			timer.Reset(c.interval)
		}
	}
}

// String names the service in supervisor logs.
func (c *Coordinator) String() string {
	return "backup-coordinator"
}

// Status returns the latest pass summary and tracked-set sizes.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// runPass scans the store tree and backs up every untracked item.
// Per-item failures are logged and counted; they never abort the pass.
func (c *Coordinator) runPass(ctx context.Context) {
	start := time.Now()

	handles, err := actorstore.ScanStores(c.root)
	if err != nil {
		logging.Error().Err(err).Str("root", c.root).Msg("Store discovery failed")
		return
	}

	errCount := 0
	for _, h := range handles {
		if err := c.backupKey(ctx, h); err != nil {
			errCount++
			logging.Error().Err(err).Str("did", h.DID).Msg("Key backup failed")
		}
		if err := c.backupDatabase(ctx, h); err != nil {
			errCount++
			logging.Error().Err(err).Str("did", h.DID).Msg("Database backup failed")
		}
	}

	c.recordPass(start, len(handles), errCount)

	logging.Info().
		Int("stores", len(handles)).
		Int("errors", errCount).
		Dur("elapsed", time.Since(start)).
		Msg("Backup pass complete")
}

// backupKey uploads h's signing-key file if it has not been uploaded
// before. Key files are immutable, so one confirmed upload is enough
// for the life of the store.
func (c *Coordinator) backupKey(ctx context.Context, h actorstore.Handle) error {
	tracked, err := c.keys.Contains(h.KeyPath)
	if err != nil {
		return err
	}
	if tracked {
		return nil
	}

	if _, err := os.Stat(h.KeyPath); err != nil {
		// A store without its key file is skipped, not failed; the
		// next pass sees it again.
		logging.Warn().Str("did", h.DID).Str("path", h.KeyPath).Msg("Key file missing, skipping")
		return nil
	}

	key := replication.RemoteKey(c.root, h.KeyPath)
	if err := c.store.Put(ctx, h.KeyPath, key); err != nil {
		metrics.RecordItemFailure("key", "upload")
		return fmt.Errorf("upload key for %s: %w", h.DID, err)
	}

	if err := c.keys.Record(h.KeyPath); err != nil {
		// The upload landed; the unrecorded item re-uploads next pass.
		metrics.RecordItemFailure("key", "record")
		return fmt.Errorf("record key for %s: %w", h.DID, err)
	}

	metrics.RecordUpload("key")
	logging.Info().Str("did", h.DID).Str("key", key).Msg("Key file uploaded")
	return nil
}

// backupDatabase snapshots and uploads h's store database unless the
// continuous replicator owns it or a snapshot was already confirmed.
func (c *Coordinator) backupDatabase(ctx context.Context, h actorstore.Handle) error {
	if c.replicated.Contains(h.DBPath) {
		return nil
	}

	tracked, err := c.dbs.Contains(h.DBPath)
	if err != nil {
		return err
	}
	if tracked {
		return nil
	}

	scratch, err := c.snapshots.Snapshot(ctx, h.DBPath)
	if err != nil {
		metrics.RecordItemFailure("database", "snapshot")
		return err
	}
	defer func() {
		if rmErr := os.Remove(scratch); rmErr != nil && !os.IsNotExist(rmErr) {
			logging.Warn().Err(rmErr).Str("path", scratch).Msg("Failed to remove snapshot copy")
		}
	}()

	key := replication.RemoteKey(c.root, h.DBPath)
	if err := c.store.Put(ctx, scratch, key); err != nil {
		metrics.RecordItemFailure("database", "upload")
		return fmt.Errorf("upload snapshot for %s: %w", h.DID, err)
	}

	if err := c.dbs.Record(h.DBPath); err != nil {
		metrics.RecordItemFailure("database", "record")
		return fmt.Errorf("record snapshot for %s: %w", h.DID, err)
	}

	metrics.RecordUpload("database")
	logging.Info().Str("did", h.DID).Str("key", key).Msg("Store snapshot uploaded")
	return nil
}

func (c *Coordinator) recordPass(start time.Time, stores, errCount int) {
	metrics.RecordBackupPass(time.Since(start), stores)

	trackedKeys, err := c.keys.Len()
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to size key tracked set")
	}
	trackedDBs, err := c.dbs.Len()
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to size database tracked set")
	}
	metrics.SetTrackedItems("key", trackedKeys)
	metrics.SetTrackedItems("database", trackedDBs)

	c.mu.Lock()
	c.status = Status{
		LastPass:        start,
		LastPassStores:  stores,
		LastPassErrors:  errCount,
		TrackedKeys:     trackedKeys,
		TrackedDBs:      trackedDBs,
		ReplicatedPaths: c.replicated.Len(),
	}
	c.mu.Unlock()
}
