package store

import (
	"fmt"

	"github.com/dyluth/midden/internal/lock"
)

// NotFoundError indicates the requested entity has no state document.
type NotFoundError struct {
	EntityType string
	EntityID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("entity '%s/%s' not found", e.EntityType, e.EntityID)
}

// AlreadyExistsError indicates a create collided with an existing entity.
type AlreadyExistsError struct {
	EntityType string
	EntityID   string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("entity '%s/%s' already exists", e.EntityType, e.EntityID)
}

// VersionConflictError indicates an optimistic concurrency failure: the
// caller's expected version no longer matches the stored document. The
// document is untouched; the caller should re-read and retry.
type VersionConflictError struct {
	EntityType string
	EntityID   string
	Expected   int
	Current    int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on entity '%s/%s': expected %d, current %d",
		e.EntityType, e.EntityID, e.Expected, e.Current)
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAlreadyExists returns true if the error is an AlreadyExistsError.
func IsAlreadyExists(err error) bool {
	_, ok := err.(*AlreadyExistsError)
	return ok
}

// IsVersionConflict returns true if the error is a VersionConflictError.
func IsVersionConflict(err error) bool {
	_, ok := err.(*VersionConflictError)
	return ok
}

// IsLockTimeout returns true if the error is an entity lock acquisition
// timeout. Index lock timeouts never surface as errors; they degrade to
// warnings on the operation result.
func IsLockTimeout(err error) bool {
	return lock.IsTimeout(err)
}
