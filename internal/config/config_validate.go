// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate runs the struct-tag checks declared on the Config types.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that required configuration is present and valid.
// Struct tags cover field-level constraints; the per-section methods
// hold the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return describeValidationError(err)
	}

	if err := c.validateBackup(); err != nil {
		return err
	}

	if err := c.validateObjectStore(); err != nil {
		return err
	}

	if err := c.validateEvents(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	return c.validateSecurity()
}

// validateBackup checks the coordinator interval. Sub-minute passes
// would hammer the store tree with discovery scans for no gain.
func (c *Config) validateBackup() error {
	if !c.Backup.Enabled {
		return nil
	}
	if c.Backup.Interval < time.Minute {
		return fmt.Errorf("BACKUP_INTERVAL must be at least 1m, got %s", c.Backup.Interval)
	}
	return nil
}

// validateObjectStore rejects a partially-configured credential triple.
// A fully absent triple is the valid no-backup mode; a partial one is
// an operator mistake that would silently disable backup.
func (c *Config) validateObjectStore() error {
	configured := 0
	if c.ObjectStore.Bucket != "" {
		configured++
	}
	if c.ObjectStore.AccessKey != "" {
		configured++
	}
	if c.ObjectStore.SecretKey != "" {
		configured++
	}
	if configured != 0 && configured != 3 {
		return fmt.Errorf("object storage is partially configured: S3_BUCKET, AWS_ACCESS_KEY_ID, and AWS_SECRET_ACCESS_KEY must be set together (or all left empty to disable backup)")
	}
	return nil
}

// validateEvents checks NATS settings when event sequencing is on.
func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	if !c.Events.EmbeddedServer && c.Events.URL == "" {
		return fmt.Errorf("NATS_URL is required when EVENTS_ENABLED=true and NATS_EMBEDDED=false")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.Server.Timeout)
	}
	return nil
}

// validateSecurity checks admin credentials. An empty password is
// valid (operator endpoints stay unmounted); a short one is not.
func (c *Config) validateSecurity() error {
	if c.Security.AdminPassword == "" {
		return nil
	}
	if len(c.Security.AdminPassword) < 8 {
		return fmt.Errorf("ADMIN_PASSWORD must be at least 8 characters")
	}
	if c.Security.AdminUsername == "" {
		return fmt.Errorf("ADMIN_USERNAME is required when ADMIN_PASSWORD is set")
	}
	return nil
}

// describeValidationError rewrites the first struct-tag violation into
// the same shape the hand-written checks use.
func describeValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	first := verrs[0]
	return fmt.Errorf("invalid value for %s (rule: %s)", first.Namespace(), first.Tag())
}
