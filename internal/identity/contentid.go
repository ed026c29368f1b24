// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package identity

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// ContentIDSize is the number of bytes in a content identifier.
const ContentIDSize = 32

// ContentID is the fixed-size secure hash that addresses an entry in a
// tenant's commit log.
type ContentID [ContentIDSize]byte

// HashContent computes the SHAKE256 content identifier of b.
func HashContent(b []byte) ContentID {
	var id ContentID
	sha3.ShakeSum256(id[:], b)
	return id
}

// String returns the lowercase hex form of the identifier.
func (id ContentID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero identifier.
func (id ContentID) IsZero() bool {
	return id == ContentID{}
}

// MarshalText implements encoding.TextMarshaler.
func (id ContentID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ContentID) UnmarshalText(text []byte) error {
	parsed, err := ParseContentID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseContentID parses the hex form produced by String.
func ParseContentID(s string) (ContentID, error) {
	var id ContentID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("parse content id: %w", err)
	}
	if len(b) != ContentIDSize {
		return id, fmt.Errorf("parse content id: got %d bytes, want %d", len(b), ContentIDSize)
	}
	copy(id[:], b)
	return id, nil
}
