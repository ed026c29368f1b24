// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

// Package identity provides the identity primitives shared across the
// service: decentralized identifier (DID) validation, signing keypairs
// with their did:key form, content identifiers for the commit log, and
// the monotonic revision clock.
//
// A DID is the stable public handle of a tenant. It survives the loss
// of the tenant's actor store; everything else about the tenant can be
// rebuilt around it.
package identity
