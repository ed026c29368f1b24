// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

// Package main is the entry point for the Actorvault daemon.
//
// Actorvault backs up a fleet of per-tenant SQLite actor stores to remote
// object storage and can rebuild a lost store for an existing identity
// without losing its externally-visible handle.
//
// # Startup Order
//
//  1. Configuration: layered defaults, optional YAML file, environment (Koanf v2)
//  2. Logging: zerolog, structured JSON or console output
//  3. Account directory: service-wide SQLite database
//  4. Actor store manager: per-tenant store tree
//  5. Backup side, only when object storage credentials are present:
//     replication config for the external continuous-replication tool,
//     tracked sets (Badger), snapshot engine, backup coordinator
//  6. Change-event sequencer: NATS JetStream, embedded or external
//  7. Supervisor tree (suture): data, backup, and api layers
//
// With no object storage credentials configured the daemon logs one
// warning and runs the primary service with no backup; this is the
// documented degrade-gracefully mode, not a failure.
package main
