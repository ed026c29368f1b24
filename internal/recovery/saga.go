// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

// Package recovery rebuilds a usable, empty actor store for an account
// whose store artifacts were lost, while preserving the account's
// identity. The saga runs seven ordered steps with distinct failure
// domains; the must-succeed core (steps 1-4) aborts without rollback,
// leaving partial state in place for the operator to inspect and resume.
package recovery

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/actorvault/actorvault/internal/accounts"
	"github.com/actorvault/actorvault/internal/actorstore"
	"github.com/actorvault/actorvault/internal/events"
	"github.com/actorvault/actorvault/internal/identity"
	"github.com/actorvault/actorvault/internal/logging"
	"github.com/actorvault/actorvault/internal/metrics"
	"github.com/actorvault/actorvault/internal/repo"
)

// Step numbers and names, stable across releases so operators can script
// against them.
const (
	stepGenerateKey       = 1
	stepCreateStore       = 2
	stepInitContentLog    = 3
	stepUpdateAccountRoot = 4
	stepUpdateDirectory   = 5
	stepSequenceEvents    = 6
	stepClearReserved     = 7
)

var stepNames = map[int]string{
	stepGenerateKey:       "generate-keypair",
	stepCreateStore:       "create-store",
	stepInitContentLog:    "init-content-log",
	stepUpdateAccountRoot: "update-account-root",
	stepUpdateDirectory:   "update-directory",
	stepSequenceEvents:    "sequence-events",
	stepClearReserved:     "clear-reserved-keypair",
}

// AccountDirectory is the account-record store the saga reads and updates.
type AccountDirectory interface {
	GetAccount(ctx context.Context, did string) (*accounts.Account, error)
	UpdateRepoRoot(ctx context.Context, did, root, rev string) error
}

// StoreManager provisions actor stores and owns the reserved-keypair pool.
type StoreManager interface {
	Exists(did string) bool
	Create(ctx context.Context, did string, kp *identity.Keypair) (actorstore.Handle, error)
	Transact(ctx context.Context, did string, fn func(tx *sql.Tx) error) error
	LoadReservedKeypair(keyID string) (*identity.Keypair, error)
	ClearReservedKeypair(keyID, did string) error
}

// IdentityDirectory registers signing-key rotations with the external
// directory.
type IdentityDirectory interface {
	UpdateSigningKey(ctx context.Context, did string, rotationKey *identity.Keypair, newKeyDID string) error
}

// Config wires the saga's collaborators. Directory and Rotation may both
// be nil, in which case the directory notification step is skipped with a
// warning. A nil Sequencer drops events.
type Config struct {
	Accounts  AccountDirectory
	Stores    StoreManager
	Directory IdentityDirectory
	Sequencer events.Sequencer
	Rotation  *identity.Keypair
	Clock     *identity.RevClock
}

// Saga executes actor recovery for one identity at a time. Concurrent
// invocation against the same identity is undefined; callers serialize.
type Saga struct {
	accounts  AccountDirectory
	stores    StoreManager
	directory IdentityDirectory
	sequencer events.Sequencer
	rotation  *identity.Keypair
	clock     *identity.RevClock
}

// NewSaga creates a recovery saga from the given collaborators.
func NewSaga(cfg Config) *Saga {
	if cfg.Sequencer == nil {
		cfg.Sequencer = events.NoopSequencer{}
	}
	if cfg.Clock == nil {
		cfg.Clock = identity.NewRevClock()
	}
	return &Saga{
		accounts:  cfg.Accounts,
		stores:    cfg.Stores,
		directory: cfg.Directory,
		sequencer: cfg.Sequencer,
		rotation:  cfg.Rotation,
		clock:     cfg.Clock,
	}
}

// StepOutcome records how one saga step ended.
type StepOutcome struct {
	Step   int    `json:"step"`
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Result describes a completed recovery.
type Result struct {
	DID              string        `json:"did"`
	NewKeyDID        string        `json:"new_key_did"`
	Commit           repo.Commit   `json:"commit"`
	Steps            []StepOutcome `json:"steps"`
	DirectoryUpdated bool          `json:"directory_updated"`
}

// StepError reports a fatal saga step failure with enough context to
// resume manually: the identity, the step, and what state the failure
// left behind.
type StepError struct {
	Step  int
	Name  string
	DID   string
	State string
	Err   error
}

func (e *StepError) Error() string {
	if e.State == "" {
		return fmt.Sprintf("recovery step %d (%s) for %s: %v", e.Step, e.Name, e.DID, e.Err)
	}
	return fmt.Sprintf("recovery step %d (%s) for %s: %v; state: %s", e.Step, e.Name, e.DID, e.Err, e.State)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Run recovers the actor store for did. When reservedKeyID names a
// keypair parked in the reserved pool, that key becomes the store's
// signing key; otherwise a fresh one is generated. Preconditions fail
// with the account directory's NotFound or the store manager's
// AlreadyExists before any state changes.
func (s *Saga) Run(ctx context.Context, did, reservedKeyID string) (*Result, error) {
	start := time.Now()
	metrics.RecoveryAttempts.Inc()
	defer func() {
		metrics.RecoveryDuration.Observe(time.Since(start).Seconds())
	}()

	if err := identity.ValidateDID(did); err != nil {
		return nil, err
	}

	// Preconditions. Nothing may be written when either fails: running
	// recovery against a live store would shadow it, and running it for
	// an unknown identity would fabricate an account.
	account, err := s.accounts.GetAccount(ctx, did)
	if err != nil {
		return nil, fmt.Errorf("recovery precondition: %w", err)
	}
	if s.stores.Exists(did) {
		return nil, fmt.Errorf("recovery precondition: %w: %s", actorstore.ErrStoreExists, did)
	}

	logging.Info().Str("did", did).Str("handle", account.Handle).Msg("Actor recovery started")
	res := &Result{DID: did}

	// Step 1: obtain the new signing keypair.
	kp, err := s.signingKey(reservedKeyID)
	if err != nil {
		return nil, s.fatal(stepGenerateKey, did, "no state changed", err)
	}
	res.NewKeyDID = kp.PublicDID()
	s.stepOK(res, stepGenerateKey, "")

	// Step 2: provision the store directory, database, and key file.
	handle, err := s.stores.Create(ctx, did, kp)
	if err != nil {
		return nil, s.fatal(stepCreateStore, did, "partial store directory may remain on disk", err)
	}
	s.stepOK(res, stepCreateStore, handle.Dir)

	// Step 3: initialize the content log with its first commit.
	var commit repo.Commit
	err = s.stores.Transact(ctx, did, func(tx *sql.Tx) error {
		var txErr error
		commit, txErr = repo.InitEmpty(ctx, tx, did, kp, s.clock)
		return txErr
	})
	if err != nil {
		return nil, s.fatal(stepInitContentLog, did, "store exists but its content log is empty", err)
	}
	res.Commit = commit
	s.stepOK(res, stepInitContentLog, commit.CID.String())

	// Step 4: point the account record at the new commit.
	if err := s.accounts.UpdateRepoRoot(ctx, did, commit.CID.String(), commit.Rev); err != nil {
		return nil, s.fatal(stepUpdateAccountRoot, did, "store rebuilt but the account root still references the lost store", err)
	}
	s.stepOK(res, stepUpdateAccountRoot, "")

	// Step 5: tell the identity directory about the key rotation. The
	// store is already usable locally, so a directory failure must not
	// fail recovery; the operator re-runs the rotation manually.
	res.DirectoryUpdated = s.updateDirectory(ctx, res, did, kp)

	// Step 6: sequence the identity event, then the commit event.
	// Downstream consumers resolve the identity from the first event
	// before applying the second, so the order is load-bearing.
	if err := s.sequencer.SequenceIdentityChange(ctx, did, account.Handle); err != nil {
		return nil, s.fatal(stepSequenceEvents, did, "store rebuilt and registered, firehose missing the identity event", err)
	}
	if err := s.sequencer.SequenceCommit(ctx, did, commit); err != nil {
		return nil, s.fatal(stepSequenceEvents, did, "store rebuilt and registered, firehose missing the commit event", err)
	}
	s.stepOK(res, stepSequenceEvents, "")

	// Step 7: release the reservation the new key came from, if any.
	// Pure cleanup, never fatal.
	if err := s.stores.ClearReservedKeypair(kp.PublicDID(), did); err != nil {
		logging.Warn().Err(err).Str("did", did).Msg("Reserved keypair cleanup failed")
		s.stepFailed(res, stepClearReserved, err)
	} else {
		s.stepOK(res, stepClearReserved, "")
	}

	logging.Info().
		Str("did", did).
		Str("commit", commit.CID.String()).
		Str("rev", commit.Rev).
		Bool("directory_updated", res.DirectoryUpdated).
		Dur("duration", time.Since(start)).
		Msg("Actor recovery completed")
	return res, nil
}

// signingKey loads the reserved keypair when a reservation is named,
// otherwise generates a fresh one.
func (s *Saga) signingKey(reservedKeyID string) (*identity.Keypair, error) {
	if reservedKeyID != "" {
		return s.stores.LoadReservedKeypair(reservedKeyID)
	}
	return identity.GenerateKeypair()
}

// updateDirectory runs step 5 and reports whether the directory now knows
// the new key.
func (s *Saga) updateDirectory(ctx context.Context, res *Result, did string, kp *identity.Keypair) bool {
	if s.directory == nil || s.rotation == nil {
		logging.Warn().Str("did", did).Msg("No identity directory configured, signing key rotation must be registered manually")
		s.stepSkipped(res, stepUpdateDirectory, "no directory configured")
		return false
	}

	if err := s.directory.UpdateSigningKey(ctx, did, s.rotation, kp.PublicDID()); err != nil {
		logging.Error().Err(err).
			Str("did", did).
			Str("new_key", kp.PublicDID()).
			Msg("IDENTITY DIRECTORY UPDATE FAILED, the directory still lists the lost signing key; re-run key rotation manually")
		s.stepFailed(res, stepUpdateDirectory, err)
		return false
	}

	s.stepOK(res, stepUpdateDirectory, "")
	return true
}

func (s *Saga) stepOK(res *Result, step int, detail string) {
	metrics.RecordRecoveryStep(step, "ok")
	res.Steps = append(res.Steps, StepOutcome{Step: step, Name: stepNames[step], OK: true, Detail: detail})
	logging.Debug().Str("did", res.DID).Int("step", step).Str("name", stepNames[step]).Msg("Recovery step completed")
}

func (s *Saga) stepFailed(res *Result, step int, err error) {
	metrics.RecordRecoveryStep(step, "failed")
	res.Steps = append(res.Steps, StepOutcome{Step: step, Name: stepNames[step], OK: false, Detail: err.Error()})
}

func (s *Saga) stepSkipped(res *Result, step int, detail string) {
	metrics.RecordRecoveryStep(step, "skipped")
	res.Steps = append(res.Steps, StepOutcome{Step: step, Name: stepNames[step], OK: false, Detail: detail})
}

func (s *Saga) fatal(step int, did, state string, err error) error {
	metrics.RecordRecoveryStep(step, "failed")
	serr := &StepError{Step: step, Name: stepNames[step], DID: did, State: state, Err: err}
	logging.Error().Err(err).Str("did", did).Int("step", step).Str("name", stepNames[step]).Str("state", state).Msg("Actor recovery failed")
	return serr
}
