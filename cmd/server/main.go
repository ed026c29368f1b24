// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/actorvault/actorvault/internal/accounts"
	"github.com/actorvault/actorvault/internal/actorstore"
	"github.com/actorvault/actorvault/internal/api"
	"github.com/actorvault/actorvault/internal/auth"
	"github.com/actorvault/actorvault/internal/config"
	"github.com/actorvault/actorvault/internal/events"
	"github.com/actorvault/actorvault/internal/identity"
	"github.com/actorvault/actorvault/internal/logging"
	"github.com/actorvault/actorvault/internal/metrics"
	"github.com/actorvault/actorvault/internal/plc"
	"github.com/actorvault/actorvault/internal/recovery"
	"github.com/actorvault/actorvault/internal/supervisor"
	"github.com/actorvault/actorvault/internal/supervisor/services"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("version", Version).
		Str("data_dir", cfg.Storage.DataDir).
		Msg("Starting Actorvault")

	metrics.SetAppInfo(Version)

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Actorvault failed")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Account directory: the only hard storage dependency.
	directory, err := accounts.Open(cfg.AccountsPath())
	if err != nil {
		return fmt.Errorf("open account directory: %w", err)
	}
	defer func() {
		if err := directory.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close account directory")
		}
	}()

	stores := actorstore.NewManager(cfg.ActorsRoot())

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	// Backup side: replication config builder + coordinator, or nothing.
	var backupComponents *BackupComponents
	switch {
	case !cfg.BackupCredentialsPresent():
		// Deliberate degrade-gracefully mode: the primary service runs
		// with no backup at all.
		logging.Warn().Msg("Object storage credentials absent, running with backup disabled")
	case !cfg.Backup.Enabled:
		logging.Warn().Msg("Backup disabled (BACKUP_ENABLED=false)")
	default:
		backupComponents, err = InitBackup(ctx, cfg)
		if err != nil {
			return fmt.Errorf("initialize backup: %w", err)
		}
		defer backupComponents.Close()
		tree.AddBackupService("backup-coordinator", backupComponents.Coordinator)
	}

	eventComponents, err := InitEvents(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize events: %w", err)
	}
	var sequencer events.Sequencer = events.NoopSequencer{}
	if eventComponents != nil {
		sequencer = eventComponents
		tree.AddBackupService("event-components", services.NewEventComponentsService("event-components", eventComponents))
	}

	saga := recovery.NewSaga(recovery.Config{
		Accounts:  directory,
		Stores:    stores,
		Directory: directoryClient(cfg),
		Sequencer: sequencer,
		Rotation:  rotationKeypair(cfg),
	})

	server, err := adminServer(cfg, directory, backupComponents, eventComponents, saga)
	if err != nil {
		return err
	}
	tree.AddAPIService("admin-api", services.NewHTTPServerService("admin-api", server))

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, stopping supervisor tree")
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	logging.Info().Msg("Actorvault stopped")
	return nil
}

// directoryClient returns the identity directory client, or nil when
// rotation announcements are not configured. The saga treats a nil
// directory as "skip step 5 with a warning".
func directoryClient(cfg *config.Config) recovery.IdentityDirectory {
	if !cfg.DirectoryEnabled() {
		logging.Warn().Msg("Identity directory not configured, key rotations must be registered manually")
		return nil
	}
	return plc.New(cfg.Directory.URL)
}

// rotationKeypair loads the rotation credential used to announce new
// signing keys to the identity directory. Never the store's own key.
func rotationKeypair(cfg *config.Config) *identity.Keypair {
	if !cfg.DirectoryEnabled() {
		return nil
	}
	data, err := os.ReadFile(cfg.Directory.RotationKeyPath)
	if err != nil {
		logging.Warn().Err(err).Str("path", cfg.Directory.RotationKeyPath).
			Msg("Failed to read rotation key, directory updates disabled")
		return nil
	}
	kp, err := identity.ParseKeypairPEM(data)
	if err != nil {
		logging.Warn().Err(err).Str("path", cfg.Directory.RotationKeyPath).
			Msg("Failed to parse rotation key, directory updates disabled")
		return nil
	}
	return kp
}

// adminServer assembles the operator HTTP server. With no admin password
// configured only health and metrics are mounted.
func adminServer(cfg *config.Config, directory *accounts.Directory, backupComponents *BackupComponents, eventComponents *EventComponents, saga *recovery.Saga) (*http.Server, error) {
	handlerCfg := api.HandlerConfig{
		Accounts: directory,
		Recovery: saga,
		Version:  Version,
	}
	if backupComponents != nil {
		handlerCfg.Backup = backupComponents.Coordinator
	}
	if eventComponents != nil {
		handlerCfg.Events = eventComponents
	}

	routerCfg := api.RouterConfig{
		RateLimitRequests: cfg.Security.RateLimitReqs,
		RateLimitWindow:   cfg.Security.RateLimitWindow,
		RateLimitDisabled: cfg.Security.RateLimitDisabled,
	}
	if cfg.AdminAPIEnabled() {
		authManager, err := auth.NewBasicAuthManager(cfg.Security.AdminUsername, cfg.Security.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("configure admin auth: %w", err)
		}
		routerCfg.Auth = authManager
	} else {
		logging.Warn().Msg("Admin password not set, operator endpoints disabled")
	}

	router := api.NewRouter(api.NewHandler(handlerCfg), routerCfg)

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}
