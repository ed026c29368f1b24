// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package main

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/actorvault/actorvault/internal/actorstore"
	"github.com/actorvault/actorvault/internal/backup"
	"github.com/actorvault/actorvault/internal/config"
	"github.com/actorvault/actorvault/internal/logging"
	"github.com/actorvault/actorvault/internal/objectstore"
	"github.com/actorvault/actorvault/internal/replication"
)

// BackupComponents holds the periodic backup side: the tracked-set
// database, the snapshot engine, and the coordinator.
type BackupComponents struct {
	tracked     *badger.DB
	snapshots   *backup.Engine
	Coordinator *backup.Coordinator
}

// InitBackup builds the whole backup side. It runs the one-shot
// replication config builder first: the merged config is written out for
// the external continuous-replication tool, and its database list becomes
// the immutable replicated-set snapshot the coordinator skips. Stores
// created after this point are the coordinator's responsibility until the
// next restart.
//
// Callers check config.BackupCredentialsPresent before calling; this
// function assumes object storage is configured.
func InitBackup(ctx context.Context, cfg *config.Config) (*BackupComponents, error) {
	handles, err := actorstore.ScanStores(cfg.ActorsRoot())
	if err != nil {
		return nil, fmt.Errorf("discover actor stores: %w", err)
	}

	base, err := replication.LoadBase(cfg.Replication.BaseConfig)
	if err != nil {
		return nil, fmt.Errorf("load base replication config: %w", err)
	}

	repCfg := replication.BuildConfig(base, handles, cfg.ActorsRoot(), cfg.ObjectStore.ReplicaURL())
	if err := replication.WriteConfig(repCfg, cfg.ReplicationOutput()); err != nil {
		return nil, fmt.Errorf("write replication config: %w", err)
	}
	logging.Info().
		Str("path", cfg.ReplicationOutput()).
		Int("targets", len(repCfg.DBs)).
		Int("discovered", len(handles)).
		Msg("Replication config written")

	store, err := objectstore.New(ctx, objectstore.Config{
		Bucket:               cfg.ObjectStore.Bucket,
		Prefix:               cfg.ObjectStore.Prefix,
		Region:               cfg.ObjectStore.Region,
		Endpoint:             cfg.ObjectStore.Endpoint,
		AccessKey:            cfg.ObjectStore.AccessKey,
		SecretKey:            cfg.ObjectStore.SecretKey,
		ForcePathStyle:       cfg.ObjectStore.ForcePathStyle,
		UploadBytesPerSecond: cfg.ObjectStore.UploadRate,
	})
	if err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(cfg.TrackedPath()).WithLogger(nil)
	tracked, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open tracked-set database: %w", err)
	}

	snapshots, err := backup.NewEngine(cfg.ScratchPath())
	if err != nil {
		closeQuietly(tracked)
		return nil, err
	}

	coordinator := backup.NewCoordinator(backup.CoordinatorConfig{
		ActorsRoot: cfg.ActorsRoot(),
		Interval:   cfg.Backup.Interval,
		Store:      store,
		Snapshots:  snapshots,
		Keys:       backup.NewTrackedSet(tracked, backup.TrackedKeysPrefix),
		Databases:  backup.NewTrackedSet(tracked, backup.TrackedDatabasesPrefix),
		Replicated: backup.NewReplicatedSet(replication.ReplicatedPaths(repCfg)),
	})

	return &BackupComponents{
		tracked:     tracked,
		snapshots:   snapshots,
		Coordinator: coordinator,
	}, nil
}

// Close releases the backup side's local resources.
func (b *BackupComponents) Close() {
	if err := b.snapshots.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to remove snapshot scratch dir")
	}
	closeQuietly(b.tracked)
}

func closeQuietly(db *badger.DB) {
	if err := db.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close tracked-set database")
	}
}
