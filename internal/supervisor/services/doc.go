// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

// Package services adapts components with Start/Shutdown lifecycles into
// suture services that block in Serve until their context is canceled.
package services
