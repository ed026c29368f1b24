// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

// Package replication builds the configuration file consumed by the
// external continuous-replication process. The service does not ship
// WAL frames itself; it discovers the stores that need shipping, merges
// them with the operator's base configuration, and writes the combined
// file out at startup. The replicator owns those databases from then
// on, and the backup coordinator leaves them alone.
package replication

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/actorvault/actorvault/internal/actorstore"
)

// Replica is one replication destination for a database.
type Replica struct {
	URL string `koanf:"url"`
}

// Target is one database entry in the replicator configuration.
type Target struct {
	Path     string    `koanf:"path"`
	Replicas []Replica `koanf:"replicas"`
}

// Config is the replicator configuration file: operator-maintained
// fixed targets plus the per-tenant targets appended at startup.
type Config struct {
	AccessKeyID     string   `koanf:"access-key-id"`
	SecretAccessKey string   `koanf:"secret-access-key"`
	DBs             []Target `koanf:"dbs"`
}

// LoadBase reads the operator's base configuration. A missing file
// yields an empty configuration, not an error: a deployment with no
// fixed targets is normal.
func LoadBase(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		return &cfg, nil
	}

	k := koanf.New(".")
	err := k.Load(file.Provider(path), yaml.Parser())
	if errors.Is(err, fs.ErrNotExist) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load base replication config %s: %w", path, err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("parse base replication config %s: %w", path, err)
	}
	return &cfg, nil
}

// BuildConfig returns base plus one target per discovered store. The
// replica URL for a store is replicaURL joined with the store's path
// relative to root, so the remote tree mirrors the local layout. The
// input config is not modified.
func BuildConfig(base *Config, handles []actorstore.Handle, root, replicaURL string) *Config {
	out := &Config{
		AccessKeyID:     base.AccessKeyID,
		SecretAccessKey: base.SecretAccessKey,
		DBs:             make([]Target, 0, len(base.DBs)+len(handles)),
	}
	out.DBs = append(out.DBs, base.DBs...)

	replicaURL = strings.TrimSuffix(replicaURL, "/")
	for _, h := range handles {
		rel := relativePath(root, h.DBPath)
		out.DBs = append(out.DBs, Target{
			Path: h.DBPath,
			Replicas: []Replica{
				{URL: replicaURL + "/" + rel},
			},
		})
	}
	return out
}

// WriteConfig marshals cfg to YAML at path. The file may carry
// credentials, so it is written owner-only.
func WriteConfig(cfg *Config, path string) error {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return fmt.Errorf("stage replication config: %w", err)
	}

	out, err := k.Marshal(yaml.Parser())
	if err != nil {
		return fmt.Errorf("encode replication config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write replication config %s: %w", path, err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("write replication config %s: %w", path, err)
	}
	return nil
}

// ReplicatedPaths returns the set of local database paths cfg covers.
// The backup coordinator snapshots this set once at startup; databases
// in it are the replicator's responsibility.
func ReplicatedPaths(cfg *Config) map[string]struct{} {
	paths := make(map[string]struct{}, len(cfg.DBs))
	for _, t := range cfg.DBs {
		paths[t.Path] = struct{}{}
	}
	return paths
}

// RemoteKey returns the object key for a store file: its path relative
// to root. Files outside root keep their base name.
func RemoteKey(root, localPath string) string {
	return relativePath(root, localPath)
}

func relativePath(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(p)
	}
	return filepath.ToSlash(rel)
}
