// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package identity

import (
	"sync"
	"time"
)

// revAlphabet is base32-sortable: lexicographic order of encoded strings
// matches numeric order of the encoded values.
const revAlphabet = "234567abcdefghijklmnopqrstuvwxyz"

const revLen = 13

// RevClock issues revision strings for commit ordering. Revisions are
// strictly increasing for a single clock instance and sort
// lexicographically in issue order.
type RevClock struct {
	mu   sync.Mutex
	last uint64
}

// NewRevClock returns a clock ready for use.
func NewRevClock() *RevClock {
	return &RevClock{}
}

// Next returns the next revision string.
func (c *RevClock) Next() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := uint64(time.Now().UnixMicro()) << 10
	if now <= c.last {
		now = c.last + 1
	}
	c.last = now

	return encodeRev(now)
}

// encodeRev renders v as a fixed-width base32-sortable string.
func encodeRev(v uint64) string {
	var buf [revLen]byte
	for i := revLen - 1; i >= 0; i-- {
		buf[i] = revAlphabet[v&0x1f]
		v >>= 5
	}
	return string(buf[:])
}
