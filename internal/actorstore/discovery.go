// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package actorstore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/actorvault/actorvault/internal/logging"
)

// ScanStores walks the two-level sharded layout under root and returns
// a handle for every tenant directory containing a store database.
//
// The scan tolerates a changing tree: a missing root yields an empty
// result, and entries that vanish between directory reads are skipped.
// Plain files and directories without a store database are ignored.
// Results are sorted by database path, so repeated scans of an
// unchanged tree return identical slices.
func ScanStores(root string) ([]Handle, error) {
	shards, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var handles []Handle
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}

		shardDir := filepath.Join(root, shard.Name())
		tenants, err := os.ReadDir(shardDir)
		if errors.Is(err, fs.ErrNotExist) {
			// Shard removed mid-scan.
			continue
		}
		if err != nil {
			return nil, err
		}

		for _, tenant := range tenants {
			if !tenant.IsDir() {
				continue
			}

			dir := filepath.Join(shardDir, tenant.Name())
			dbPath := filepath.Join(dir, StoreFileName)
			if _, err := os.Stat(dbPath); err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					logging.Warn().Err(err).Str("path", dbPath).Msg("Skipping unreadable store")
				}
				continue
			}

			handles = append(handles, Handle{
				DID:     tenant.Name(),
				Dir:     dir,
				DBPath:  dbPath,
				KeyPath: filepath.Join(dir, KeyFileName),
			})
		}
	}

	sort.Slice(handles, func(i, j int) bool {
		return handles[i].DBPath < handles[j].DBPath
	})
	return handles, nil
}
