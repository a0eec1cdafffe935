package entity

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MaxEntityIDLength bounds entity IDs to what common filesystems accept
	// for a single path component.
	MaxEntityIDLength = 255
)

var (
	// entityTypePattern: lowercase alphanumeric with hyphens, letter first.
	entityTypePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

	// entityIDPattern: the full character set allowed in an entity ID.
	// Anything outside this set never reaches path construction.
	entityIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// orgPattern: DNS-style labels, lowercase alphanumeric edges.
	// A single character is a valid label on its own.
	orgPattern = regexp.MustCompile(`^[a-z0-9]$|^[a-z0-9][a-z0-9-]*[a-z0-9]$`)
)

// ValidateEntityType checks that an entity type is a safe directory name.
func ValidateEntityType(entityType string) error {
	if entityType == "" {
		return fmt.Errorf("entity type cannot be empty")
	}

	if !entityTypePattern.MatchString(entityType) {
		return fmt.Errorf("invalid entity type '%s': must be lowercase alphanumeric with hyphens, starting with a letter", entityType)
	}

	return nil
}

// ValidateEntityID checks that an entity ID is a safe filename component.
// This is the primary path-traversal defense: callers must reject here
// before any filesystem path is constructed from the ID.
func ValidateEntityID(entityID string) error {
	if entityID == "" {
		return fmt.Errorf("entity ID cannot be empty")
	}

	if len(entityID) > MaxEntityIDLength {
		return fmt.Errorf("entity ID too long: %d characters (max: %d)", len(entityID), MaxEntityIDLength)
	}

	if !entityIDPattern.MatchString(entityID) {
		return fmt.Errorf("invalid entity ID '%s': must contain only letters, digits, underscores, and hyphens", entityID)
	}

	if strings.HasPrefix(entityID, ".") {
		return fmt.Errorf("invalid entity ID '%s': cannot start with a dot", entityID)
	}

	if strings.Trim(entityID, ".") == "" {
		return fmt.Errorf("invalid entity ID '%s': cannot consist only of dots", entityID)
	}

	return nil
}

// ValidateOrganization checks that an organization identifier is a valid
// DNS-style label.
func ValidateOrganization(org string) error {
	if org == "" {
		return fmt.Errorf("organization cannot be empty")
	}

	if !orgPattern.MatchString(org) {
		return fmt.Errorf("invalid organization '%s': must be lowercase alphanumeric with hyphens (not at start/end)", org)
	}

	return nil
}

// ValidateProject checks a project identifier. Projects share the
// organization grammar.
func ValidateProject(project string) error {
	if project == "" {
		return fmt.Errorf("project cannot be empty")
	}

	if !orgPattern.MatchString(project) {
		return fmt.Errorf("invalid project '%s': must be lowercase alphanumeric with hyphens (not at start/end)", project)
	}

	return nil
}
