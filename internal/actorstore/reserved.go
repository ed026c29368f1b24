// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package actorstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/actorvault/actorvault/internal/identity"
	"github.com/actorvault/actorvault/internal/logging"
)

// ReserveKeypair generates a signing keypair for later assignment to
// did and parks it in the reserved pool. It returns the key ID (the
// key's did:key form) used to claim or clear the reservation.
func (m *Manager) ReserveKeypair(did string) (string, error) {
	kp, err := identity.GenerateKeypair()
	if err != nil {
		return "", fmt.Errorf("reserve keypair for %s: %w", did, err)
	}

	keyID := kp.PublicDID()
	path := m.reservedPath(keyID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create reserved dir: %w", err)
	}

	keyPEM, err := kp.MarshalPEM()
	if err != nil {
		return "", fmt.Errorf("encode reserved keypair: %w", err)
	}
	if err := os.WriteFile(path, keyPEM, 0o600); err != nil {
		return "", fmt.Errorf("write reserved keypair: %w", err)
	}

	logging.Debug().Str("did", did).Str("key_id", keyID).Msg("Keypair reserved")
	return keyID, nil
}

// LoadReservedKeypair reads a parked keypair back from the pool without
// releasing it.
func (m *Manager) LoadReservedKeypair(keyID string) (*identity.Keypair, error) {
	data, err := os.ReadFile(m.reservedPath(keyID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoReservedKeypair, keyID)
	}
	if err != nil {
		return nil, fmt.Errorf("read reserved keypair %s: %w", keyID, err)
	}
	return identity.ParseKeypairPEM(data)
}

// ClearReservedKeypair removes keyID from the reserved pool. A missing
// reservation is not an error; the pool is best-effort bookkeeping and
// clearing it must never fail a caller's flow.
func (m *Manager) ClearReservedKeypair(keyID, did string) error {
	err := os.Remove(m.reservedPath(keyID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear reserved keypair %s: %w", keyID, err)
	}
	if err == nil {
		logging.Debug().Str("did", did).Str("key_id", keyID).Msg("Reserved keypair cleared")
	}
	return nil
}

// HasReservedKeypair reports whether keyID is currently reserved.
func (m *Manager) HasReservedKeypair(keyID string) bool {
	_, err := os.Stat(m.reservedPath(keyID))
	return err == nil
}

func (m *Manager) reservedPath(keyID string) string {
	name := strings.ReplaceAll(keyID, ":", "_") + ".pem"
	return filepath.Join(m.root, reservedDirName, name)
}
