// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package backup

// ReplicatedSet is the set of database paths owned by the continuous
// replicator, captured once at startup from the generated replication
// config. It is immutable: staleness between restarts is an accepted
// property, and the cost of a store joining the replicator mid-life is
// one redundant snapshot upload, never a missed backup.
type ReplicatedSet struct {
	paths map[string]struct{}
}

// NewReplicatedSet copies paths into an immutable set.
func NewReplicatedSet(paths map[string]struct{}) *ReplicatedSet {
	owned := make(map[string]struct{}, len(paths))
	for p := range paths {
		owned[p] = struct{}{}
	}
	return &ReplicatedSet{paths: owned}
}

// Contains reports whether path is replicated.
func (s *ReplicatedSet) Contains(path string) bool {
	if s == nil {
		return false
	}
	_, ok := s.paths[path]
	return ok
}

// Len returns the number of replicated paths.
func (s *ReplicatedSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.paths)
}
