// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

// Package backup implements the periodic backup pipeline that runs
// alongside continuous replication.
//
// The coordinator wakes on an interval and walks the actor-store tree.
// Signing-key files are uploaded once, directly. Store databases not
// covered by the continuous replicator are snapshotted with the
// snapshot engine and the snapshot is uploaded. Confirmed uploads are
// recorded in durable tracked sets so later passes skip them; anything
// that fails stays unrecorded and is retried on the next pass, giving
// at-least-once upload semantics.
//
// The replicated set is deliberately a startup-time snapshot of the
// replication config. Stores provisioned after startup are picked up by
// the periodic path until a restart hands them to the replicator; the
// brief overlap after that restart is harmless duplication, never a
// gap.
package backup
