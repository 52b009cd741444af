package groups

import "errors"

// Domain errors for the groups package.
//
// Validation errors are returned synchronously to the operator:
//
//	if errors.Is(err, groups.ErrDuplicateGroup) {
//	    // pick another name
//	}
var (
	// ErrDuplicateGroup is returned when creating or renaming onto an existing name.
	ErrDuplicateGroup = errors.New("groups: group already exists")

	// ErrGroupNotFound is returned when a group name does not exist.
	ErrGroupNotFound = errors.New("groups: group not found")

	// ErrInvalidInterval is returned when an interval is outside
	// [MinInterval, MaxInterval] seconds.
	ErrInvalidInterval = errors.New("groups: interval out of range")

	// ErrInvalidName is returned when a group or scene name is empty.
	ErrInvalidName = errors.New("groups: invalid name")

	// ErrPersistence is returned when the settings document cannot be read or written.
	ErrPersistence = errors.New("groups: persistence failure")

	// ErrNoDocument is returned by a Repository when nothing has been saved yet.
	ErrNoDocument = errors.New("groups: no settings document")
)
