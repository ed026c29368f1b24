// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package identity

import (
	"fmt"
	"strings"
)

// ErrInvalidDID indicates a string that is not a well-formed DID.
var ErrInvalidDID = fmt.Errorf("invalid did")

// supportedMethods lists the DID methods this service accepts for tenants.
var supportedMethods = map[string]bool{
	"plc": true,
	"web": true,
}

// ValidateDID checks that s is a well-formed DID of a supported method.
// The form is did:<method>:<suffix> with a lowercase method and a
// non-empty suffix drawn from the URL-safe identifier charset.
func ValidateDID(s string) error {
	method, suffix, err := splitDID(s)
	if err != nil {
		return err
	}
	if !supportedMethods[method] {
		return fmt.Errorf("%w: unsupported method %q", ErrInvalidDID, method)
	}
	for _, r := range suffix {
		if !isSuffixRune(r) {
			return fmt.Errorf("%w: bad character %q in %q", ErrInvalidDID, r, s)
		}
	}
	return nil
}

// MethodSuffix returns the method-specific suffix of a DID, or an empty
// string if the DID is malformed.
func MethodSuffix(did string) string {
	_, suffix, err := splitDID(did)
	if err != nil {
		return ""
	}
	return suffix
}

// ShardDir returns the directory shard for a DID: the first two
// characters of its method-specific suffix. Suffixes shorter than two
// characters shard on the whole suffix.
func ShardDir(did string) string {
	suffix := MethodSuffix(did)
	if len(suffix) < 2 {
		return suffix
	}
	return suffix[:2]
}

func splitDID(s string) (method, suffix string, err error) {
	rest, ok := strings.CutPrefix(s, "did:")
	if !ok {
		return "", "", fmt.Errorf("%w: missing did: prefix in %q", ErrInvalidDID, s)
	}
	method, suffix, ok = strings.Cut(rest, ":")
	if !ok || method == "" || suffix == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidDID, s)
	}
	return method, suffix, nil
}

func isSuffixRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '.' || r == '-' || r == '_' || r == '%' || r == ':':
		return true
	}
	return false
}
