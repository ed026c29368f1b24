// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

// Package config provides layered configuration management for
// Actorvault using Koanf v2.
//
// Configuration is loaded from three sources, highest priority last:
//
//  1. Built-in defaults for every optional setting
//  2. An optional YAML config file (config.yaml, /etc/actorvault/config.yaml,
//     or the path in CONFIG_PATH)
//  3. Environment variables
//
// The credential gate lives here too: Config.BackupCredentialsPresent
// reports whether the object storage triple (bucket, access key, secret
// key) is configured. When it is not, the service starts with the whole
// backup side disabled and one warning logged. That is the documented
// degrade-gracefully mode: backup is a best-effort supplement, never a
// hard dependency of the primary service.
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load configuration")
//	}
//	if !cfg.BackupCredentialsPresent() {
//	    logging.Warn().Msg("Object storage credentials absent, backup disabled")
//	}
package config
