// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/actorvault/config.yaml",
	"/etc/actorvault/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with every optional setting filled in.
// Defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    2587,
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			DataDir: "/data",
			// ActorsDir, AccountsDB, TrackedDir, ScratchDir default to
			// subpaths of DataDir, resolved by the accessor methods.
		},
		Backup: BackupConfig{
			Enabled:  true,
			Interval: 15 * time.Minute,
		},
		ObjectStore: ObjectStoreConfig{
			Bucket:         "",
			Prefix:         "vault",
			Region:         "",
			Endpoint:       "",
			AccessKey:      "",
			SecretKey:      "",
			ForcePathStyle: false,
			UploadRate:     0, // unlimited
		},
		Replication: ReplicationConfig{
			BaseConfig: "/etc/actorvault/replication.yaml",
			OutputPath: "", // <data>/replication.yaml
		},
		Events: EventsConfig{
			Enabled:        true,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "", // <data>/nats/jetstream
			MaxMemory:      1 << 30,
			MaxStore:       10 << 30,
		},
		Directory: DirectoryConfig{
			URL:             "https://plc.directory",
			RotationKeyPath: "",
		},
		Security: SecurityConfig{
			AdminUsername:     "admin",
			AdminPassword:     "",
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values
//  2. Config File: optional YAML file (if it exists)
//  3. Environment Variables: override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	// Transform flat names to koanf paths: VAULT_DATA_DIR -> storage.data_dir
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the first file found, or empty string if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - VAULT_DATA_DIR -> storage.data_dir
//   - AWS_ACCESS_KEY_ID -> objectstore.access_key
//   - BACKUP_INTERVAL -> backup.interval
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Storage mappings
		"vault_data_dir":    "storage.data_dir",
		"vault_actors_dir":  "storage.actors_dir",
		"vault_accounts_db": "storage.accounts_db",
		"vault_tracked_dir": "storage.tracked_dir",
		"vault_scratch_dir": "storage.scratch_dir",

		// Backup mappings
		"backup_enabled":  "backup.enabled",
		"backup_interval": "backup.interval",

		// Object storage mappings. The AWS_* names match what the SDK
		// and the external replicator already read, so one set of
		// credentials configures both.
		"s3_bucket":             "objectstore.bucket",
		"s3_prefix":             "objectstore.prefix",
		"s3_region":             "objectstore.region",
		"aws_region":            "objectstore.region",
		"s3_endpoint":           "objectstore.endpoint",
		"aws_access_key_id":     "objectstore.access_key",
		"aws_secret_access_key": "objectstore.secret_key",
		"s3_force_path_style":   "objectstore.force_path_style",
		"s3_upload_rate":        "objectstore.upload_rate",

		// Replication mappings
		"replication_base_config": "replication.base_config",
		"replication_output":      "replication.output_path",

		// Events mappings
		"events_enabled":  "events.enabled",
		"nats_url":        "events.url",
		"nats_embedded":   "events.embedded_server",
		"nats_store_dir":  "events.store_dir",
		"nats_max_memory": "events.max_memory",
		"nats_max_store":  "events.max_store",

		// Identity directory mappings
		"directory_url":     "directory.url",
		"rotation_key_path": "directory.rotation_key_path",

		// Server mappings
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		// Security mappings
		"admin_username":      "security.admin_username",
		"admin_password":      "security.admin_password",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped so unrelated environment variables
	// cannot pollute the config.
	return ""
}
