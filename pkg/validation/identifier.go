// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided identifiers that are used
// as storage key material. Using these validators prevents key injection
// (identifiers containing the key separator) and unbounded key growth.
package validation

import (
	"fmt"
	"regexp"
)

// MaxIdentifierLength bounds identifier length to keep storage keys small.
const MaxIdentifierLength = 128

// identifierPattern matches valid object/workspace identifiers.
// Allows: letters, digits, dots, hyphens, underscores, colons.
// The '/' key separator is deliberately excluded.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:\-]*$`)

// ValidateIdentifier validates an object or relation identifier.
//
// Valid identifiers:
//   - 1-128 characters
//   - Start with a letter or digit
//   - Contain only letters, digits, dots, hyphens, underscores, colons
//
// Returns an error if the identifier is invalid.
//
// Example:
//
//	if err := validation.ValidateIdentifier(objectID); err != nil {
//	    return fmt.Errorf("invalid object id: %w", err)
//	}
//	// Safe to embed in a storage key
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(id) > MaxIdentifierLength {
		return fmt.Errorf("identifier too long: %d chars (max %d)", len(id), MaxIdentifierLength)
	}
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("invalid identifier format: %q (letters, digits, '.', '-', '_', ':' only)", id)
	}
	return nil
}

// ValidateWorkspaceID validates a workspace identifier.
//
// Workspace ids follow the same rules as object identifiers. A separate
// entry point exists so callers report the right field in errors.
func ValidateWorkspaceID(id string) error {
	if err := ValidateIdentifier(id); err != nil {
		return fmt.Errorf("workspace id: %w", err)
	}
	return nil
}

// ValidateIdentifiers validates multiple identifiers.
// Returns an error naming the first invalid identifier.
func ValidateIdentifiers(ids []string) error {
	for _, id := range ids {
		if err := ValidateIdentifier(id); err != nil {
			return err
		}
	}
	return nil
}
