// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package backup

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	// SQLite driver registration.
	_ "github.com/mattn/go-sqlite3"

	"github.com/actorvault/actorvault/internal/logging"
	"github.com/actorvault/actorvault/internal/metrics"
)

// SnapshotError wraps a failed snapshot with its source path.
type SnapshotError struct {
	Path string
	Err  error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("snapshot %s: %v", e.Path, e.Err)
}

func (e *SnapshotError) Unwrap() error {
	return e.Err
}

// Engine produces point-in-time copies of live SQLite stores without
// blocking their writers. Copies land in a scratch directory; the
// caller uploads and deletes them.
//
// VACUUM INTO runs the copy inside one read transaction, so a WAL-mode
// writer proceeds concurrently and the copy is transactionally
// consistent. Concurrent snapshots of different sources are safe; the
// coordinator serializes same-source snapshots by running passes
// sequentially.
type Engine struct {
	scratchDir string
}

// NewEngine creates an engine writing copies under scratchDir.
func NewEngine(scratchDir string) (*Engine, error) {
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot scratch dir: %w", err)
	}
	return &Engine{scratchDir: scratchDir}, nil
}

// Snapshot copies the database at dbPath and returns the copy's path.
// The caller owns the returned file.
func (e *Engine) Snapshot(ctx context.Context, dbPath string) (string, error) {
	start := time.Now()
	out, err := e.snapshot(ctx, dbPath)
	metrics.RecordSnapshot(time.Since(start), err)
	if err != nil {
		return "", &SnapshotError{Path: dbPath, Err: err}
	}
	return out, nil
}

func (e *Engine) snapshot(ctx context.Context, dbPath string) (string, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return "", err
	}

	// The file: URI form is required for mode=ro to take effect; a
	// plain path ignores query parameters and opens read-write.
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logging.Warn().Err(cerr).Str("path", dbPath).Msg("Failed to close snapshot source")
		}
	}()

	out := filepath.Join(e.scratchDir, uuid.NewString()+".sqlite")
	// Single quotes in the target path would break the statement; the
	// scratch path is uuid-generated so this only guards against a
	// misconfigured scratch dir.
	if strings.ContainsRune(out, '\'') {
		return "", fmt.Errorf("scratch path %q contains a quote", out)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", out)); err != nil {
		// A partial target file blocks any retry of VACUUM INTO.
		if rmErr := os.Remove(out); rmErr != nil && !os.IsNotExist(rmErr) {
			logging.Warn().Err(rmErr).Str("path", out).Msg("Failed to remove partial snapshot")
		}
		return "", fmt.Errorf("vacuum into: %w", err)
	}
	return out, nil
}

// Close removes the scratch directory and everything in it.
func (e *Engine) Close() error {
	if err := os.RemoveAll(e.scratchDir); err != nil {
		return fmt.Errorf("remove snapshot scratch dir: %w", err)
	}
	return nil
}
