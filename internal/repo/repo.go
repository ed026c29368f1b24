// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

// Package repo implements the minimal content-addressed commit log
// stored inside each actor store. It knows how to initialize an empty
// log and read its head; the full record machinery of the primary
// service is out of scope here, recovery only needs a valid first
// commit for the tenant to resume from.
//
// The log lives in two tables created by the actorstore package:
// repo_entry holds content-addressed blobs (commits and records), and
// repo_root points at the current head commit.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/actorvault/actorvault/internal/identity"
)

const commitVersion = 3

const (
	kindCommit = "commit"
	kindRecord = "record"
)

// ErrNoRoot indicates a store whose commit log has not been initialized.
var ErrNoRoot = errors.New("repo has no root commit")

// Commit describes the head of a tenant's commit log.
type Commit struct {
	CID        identity.ContentID `json:"cid"`
	Rev        string             `json:"rev"`
	EntryCount int                `json:"entry_count"`
}

// commitBody is the serialized, signed form of a commit. Its encoding
// is deterministic for a given field set, so the content id derived
// from it is stable.
type commitBody struct {
	DID     string  `json:"did"`
	Version int     `json:"version"`
	Data    string  `json:"data"`
	Rev     string  `json:"rev"`
	Prev    *string `json:"prev"`
	Sig     []byte  `json:"sig,omitempty"`
}

// InitEmpty writes the first commit of an empty log inside tx: an empty
// data root, a signed commit referencing it, and the root pointer. The
// returned commit carries a zero entry count.
func InitEmpty(ctx context.Context, tx *sql.Tx, did string, kp *identity.Keypair, clock *identity.RevClock) (Commit, error) {
	rev := clock.Next()

	emptyData, err := json.Marshal(map[string]string{})
	if err != nil {
		return Commit{}, fmt.Errorf("encode empty data root: %w", err)
	}
	dataCID := identity.HashContent(emptyData)

	body := commitBody{
		DID:     did,
		Version: commitVersion,
		Data:    dataCID.String(),
		Rev:     rev,
		Prev:    nil,
	}

	unsigned, err := json.Marshal(body)
	if err != nil {
		return Commit{}, fmt.Errorf("encode commit for %s: %w", did, err)
	}
	sig, err := kp.Sign(unsigned)
	if err != nil {
		return Commit{}, fmt.Errorf("sign commit for %s: %w", did, err)
	}
	body.Sig = sig

	signed, err := json.Marshal(body)
	if err != nil {
		return Commit{}, fmt.Errorf("encode signed commit for %s: %w", did, err)
	}
	cid := identity.HashContent(signed)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO repo_entry (cid, kind, data, rev)
		VALUES (?, ?, ?, ?)`, cid.String(), kindCommit, signed, rev); err != nil {
		return Commit{}, fmt.Errorf("store commit for %s: %w", did, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO repo_root (id, did, cid, rev)
		VALUES (0, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET did = excluded.did, cid = excluded.cid, rev = excluded.rev`,
		did, cid.String(), rev); err != nil {
		return Commit{}, fmt.Errorf("set root for %s: %w", did, err)
	}

	return Commit{CID: cid, Rev: rev, EntryCount: 0}, nil
}

// Root reads the current head of the log inside tx.
func Root(ctx context.Context, tx *sql.Tx) (Commit, error) {
	var (
		cidStr string
		rev    string
	)
	err := tx.QueryRowContext(ctx, `SELECT cid, rev FROM repo_root WHERE id = 0`).Scan(&cidStr, &rev)
	if errors.Is(err, sql.ErrNoRows) {
		return Commit{}, ErrNoRoot
	}
	if err != nil {
		return Commit{}, fmt.Errorf("read repo root: %w", err)
	}

	cid, err := identity.ParseContentID(cidStr)
	if err != nil {
		return Commit{}, fmt.Errorf("read repo root: %w", err)
	}

	entries, err := CountRecords(ctx, tx)
	if err != nil {
		return Commit{}, err
	}
	return Commit{CID: cid, Rev: rev, EntryCount: entries}, nil
}

// CountCommits returns the number of commits in the log.
func CountCommits(ctx context.Context, tx *sql.Tx) (int, error) {
	return countKind(ctx, tx, kindCommit)
}

// CountRecords returns the number of data records in the log.
func CountRecords(ctx context.Context, tx *sql.Tx) (int, error) {
	return countKind(ctx, tx, kindRecord)
}

func countKind(ctx context.Context, tx *sql.Tx, kind string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM repo_entry WHERE kind = ?`, kind).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s entries: %w", kind, err)
	}
	return n, nil
}

// VerifyHead checks that the stored head commit hashes to its content
// id and carries a signature that verifies under kp.
func VerifyHead(ctx context.Context, tx *sql.Tx, kp *identity.Keypair) error {
	head, err := Root(ctx, tx)
	if err != nil {
		return err
	}

	var data []byte
	err = tx.QueryRowContext(ctx, `
		SELECT data FROM repo_entry WHERE cid = ?`, head.CID.String()).Scan(&data)
	if err != nil {
		return fmt.Errorf("read head commit: %w", err)
	}

	if identity.HashContent(data) != head.CID {
		return fmt.Errorf("head commit %s does not match its content id", head.CID)
	}

	var body commitBody
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("decode head commit: %w", err)
	}
	sig := body.Sig
	body.Sig = nil
	unsigned, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("re-encode head commit: %w", err)
	}
	if !kp.Verify(unsigned, sig) {
		return fmt.Errorf("head commit %s signature does not verify", head.CID)
	}
	return nil
}
