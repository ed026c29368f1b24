// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all service configuration loaded from defaults, an
// optional YAML file, and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values for every optional setting
//  2. Config File: optional YAML file (config.yaml) for persistent settings
//  3. Environment Variables: override any setting
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent reads.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Storage     StorageConfig     `koanf:"storage"`
	Backup      BackupConfig      `koanf:"backup"`
	ObjectStore ObjectStoreConfig `koanf:"objectstore"`
	Replication ReplicationConfig `koanf:"replication"`
	Events      EventsConfig      `koanf:"events"`
	Directory   DirectoryConfig   `koanf:"directory"`
	Security    SecurityConfig    `koanf:"security"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds the admin HTTP server settings.
//
// Environment Variables:
//   - HTTP_HOST: bind address (default: 0.0.0.0)
//   - HTTP_PORT: listen port (default: 2587)
//   - HTTP_TIMEOUT: read/write timeout (default: 30s)
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// StorageConfig holds the on-disk layout. Only DataDir is required; the
// remaining paths default to subdirectories of it so a single volume
// mount covers the whole service.
//
// Environment Variables:
//   - VAULT_DATA_DIR: root data directory (default: /data)
//   - VAULT_ACTORS_DIR: actor store tree (default: <data>/actors)
//   - VAULT_ACCOUNTS_DB: account directory database (default: <data>/accounts.sqlite)
//   - VAULT_TRACKED_DIR: tracked-set storage (default: <data>/tracked)
//   - VAULT_SCRATCH_DIR: snapshot scratch space (default: <data>/scratch)
type StorageConfig struct {
	DataDir    string `koanf:"data_dir" validate:"required"`
	ActorsDir  string `koanf:"actors_dir"`
	AccountsDB string `koanf:"accounts_db"`
	TrackedDir string `koanf:"tracked_dir"`
	ScratchDir string `koanf:"scratch_dir"`
}

// BackupConfig controls the backup side: the one-shot replication config
// builder and the periodic coordinator loop.
//
// Environment Variables:
//   - BACKUP_ENABLED: run the backup side (default: true)
//   - BACKUP_INTERVAL: sleep between coordinator passes (default: 15m)
type BackupConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

// ObjectStoreConfig holds remote object storage settings. The credential
// triple (bucket, access key, secret key) gates the whole backup side:
// when any of the three is absent the service runs without backup.
//
// Environment Variables:
//   - S3_BUCKET: target bucket name
//   - S3_PREFIX: key prefix inside the bucket (default: vault)
//   - S3_REGION / AWS_REGION: bucket region
//   - S3_ENDPOINT: custom endpoint for S3-compatible stores
//   - AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY: static credentials
//   - S3_FORCE_PATH_STYLE: path-style addressing (default: false)
//   - S3_UPLOAD_RATE: upload throttle in bytes/second, 0 = unlimited
type ObjectStoreConfig struct {
	Bucket         string `koanf:"bucket"`
	Prefix         string `koanf:"prefix"`
	Region         string `koanf:"region"`
	Endpoint       string `koanf:"endpoint"`
	AccessKey      string `koanf:"access_key"`
	SecretKey      string `koanf:"secret_key"`
	ForcePathStyle bool   `koanf:"force_path_style"`
	UploadRate     int    `koanf:"upload_rate" validate:"min=0"`
}

// ReplicationConfig locates the continuous-replication tool's
// configuration files: the operator-maintained base (fixed, non-tenant
// databases) and the merged file this service generates at startup for
// the replicator process to consume.
//
// Environment Variables:
//   - REPLICATION_BASE_CONFIG: operator base config path (default: /etc/actorvault/replication.yaml)
//   - REPLICATION_OUTPUT: generated config path (default: <data>/replication.yaml)
type ReplicationConfig struct {
	BaseConfig string `koanf:"base_config"`
	OutputPath string `koanf:"output_path"`
}

// EventsConfig controls change-event sequencing over NATS JetStream.
//
// Environment Variables:
//   - EVENTS_ENABLED: publish change events (default: true)
//   - NATS_URL: external NATS server URL (default: nats://127.0.0.1:4222)
//   - NATS_EMBEDDED: run an embedded server instead (default: true)
//   - NATS_STORE_DIR: embedded JetStream storage (default: <data>/nats/jetstream)
//   - NATS_MAX_MEMORY / NATS_MAX_STORE: embedded JetStream limits
type EventsConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`
}

// DirectoryConfig holds identity directory settings for signing-key
// rotation announcements. Rotation requires both the directory URL and
// a rotation credential; with either missing, recovery still works but
// the operator must register new keys manually.
//
// Environment Variables:
//   - DIRECTORY_URL: identity directory base URL (default: https://plc.directory)
//   - ROTATION_KEY_PATH: PEM file holding the rotation credential
type DirectoryConfig struct {
	URL             string `koanf:"url" validate:"omitempty,url"`
	RotationKeyPath string `koanf:"rotation_key_path"`
}

// SecurityConfig holds admin API authentication and rate limiting.
// With no admin password configured, the operator endpoints (backup
// status, recovery trigger) are not mounted; health and metrics stay up.
//
// Environment Variables:
//   - ADMIN_USERNAME: basic auth username (default: admin)
//   - ADMIN_PASSWORD: basic auth password, 8+ characters
//   - RATE_LIMIT_REQUESTS / RATE_LIMIT_WINDOW: request budget per client IP
//   - DISABLE_RATE_LIMIT: turn rate limiting off (tests only)
type SecurityConfig struct {
	AdminUsername     string        `koanf:"admin_username"`
	AdminPassword     string        `koanf:"admin_password"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds log output settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error, fatal, panic (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from all layered sources and validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// BackupCredentialsPresent reports whether the object storage credential
// triple is fully configured. When false the service starts without the
// replication config builder, the coordinator, or any upload path; this
// is the documented degrade-gracefully mode, not an error.
func (c *Config) BackupCredentialsPresent() bool {
	return c.ObjectStore.Bucket != "" &&
		c.ObjectStore.AccessKey != "" &&
		c.ObjectStore.SecretKey != ""
}

// AdminAPIEnabled reports whether the operator endpoints are served.
func (c *Config) AdminAPIEnabled() bool {
	return c.Security.AdminPassword != ""
}

// DirectoryEnabled reports whether signing-key rotations can be
// registered with the identity directory.
func (c *Config) DirectoryEnabled() bool {
	return c.Directory.URL != "" && c.Directory.RotationKeyPath != ""
}

// ActorsRoot returns the resolved actor store tree root.
func (c *Config) ActorsRoot() string {
	if c.Storage.ActorsDir != "" {
		return c.Storage.ActorsDir
	}
	return filepath.Join(c.Storage.DataDir, "actors")
}

// AccountsPath returns the resolved account directory database path.
func (c *Config) AccountsPath() string {
	if c.Storage.AccountsDB != "" {
		return c.Storage.AccountsDB
	}
	return filepath.Join(c.Storage.DataDir, "accounts.sqlite")
}

// TrackedPath returns the resolved tracked-set storage directory.
func (c *Config) TrackedPath() string {
	if c.Storage.TrackedDir != "" {
		return c.Storage.TrackedDir
	}
	return filepath.Join(c.Storage.DataDir, "tracked")
}

// ScratchPath returns the resolved snapshot scratch directory.
func (c *Config) ScratchPath() string {
	if c.Storage.ScratchDir != "" {
		return c.Storage.ScratchDir
	}
	return filepath.Join(c.Storage.DataDir, "scratch")
}

// EventsStoreDir returns the resolved embedded JetStream storage path.
func (c *Config) EventsStoreDir() string {
	if c.Events.StoreDir != "" {
		return c.Events.StoreDir
	}
	return filepath.Join(c.Storage.DataDir, "nats", "jetstream")
}

// ReplicationOutput returns the resolved generated-config path.
func (c *Config) ReplicationOutput() string {
	if c.Replication.OutputPath != "" {
		return c.Replication.OutputPath
	}
	return filepath.Join(c.Storage.DataDir, "replication.yaml")
}

// ReplicaURL returns the remote destination prefix tenant replicas and
// snapshot uploads share: s3://<bucket>/<prefix>.
func (c *ObjectStoreConfig) ReplicaURL() string {
	prefix := strings.Trim(c.Prefix, "/")
	if prefix == "" {
		return fmt.Sprintf("s3://%s", c.Bucket)
	}
	return fmt.Sprintf("s3://%s/%s", c.Bucket, prefix)
}
