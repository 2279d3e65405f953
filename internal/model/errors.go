package model

import (
	"errors"
	"fmt"
)

var (
	// Rule related errors
	ErrRuleNotFound = errors.New("archive rule not found")
	ErrInvalidRule  = errors.New("invalid archive rule")

	// Tag related errors
	ErrTagNotFound = errors.New("tag not found")
	ErrInvalidTag  = errors.New("invalid tag id")

	// Node related errors
	ErrNodeNotFound   = errors.New("node not found")
	ErrNotPermitted   = errors.New("no mount point with move permission")
	ErrNotAFolder     = errors.New("not a folder")
	ErrPathConflict   = errors.New("path conflict")
	ErrUserNotFound   = errors.New("user not found")
	ErrLocked         = errors.New("resource is locked")
	ErrArchiveBlocked = errors.New(ArchiveFolder + " exists but is not a folder")

	// ErrDeregister is the terminal run condition: the rule or its tag is gone
	// and the scheduler must stop invoking the key.
	ErrDeregister = errors.New("rule no longer valid; deregister invocation")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)

// LockedError is returned once the move retry budget is spent while the source
// or destination kept reporting a lock. The node is left in place.
type LockedError struct {
	NodeID   int64
	Path     string
	Attempts int
	Err      error
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("node %d (%s) still locked after %d attempts: %v", e.NodeID, e.Path, e.Attempts, e.Err)
}

func (e *LockedError) Unwrap() []error {
	return []error{ErrLocked, e.Err}
}

// MoveError is an unrecoverable failure to relocate one node.
type MoveError struct {
	NodeID int64
	Path   string
	Err    error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("archive node %d (%s): %v", e.NodeID, e.Path, e.Err)
}

func (e *MoveError) Unwrap() error {
	return e.Err
}
