// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

// Package supervisor arranges the daemon's long-running services into a
// restart tree built on suture. Services are grouped into a data layer,
// a backup layer, and an API layer so a crash in one concern does not
// restart the others.
package supervisor
