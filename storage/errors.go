// Package storage persists chat sessions and their attachments under a
// configurable root directory.
//
// Each session lives in its own directory:
//
//	<root>/chat_<id>/session.json
//	<root>/chat_<id>/uploads/<sanitized attachment name>
//
// The active root is held by a Root and persisted to a small JSON file so it
// survives restarts.
package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors for common storage conditions.
var (
	// ErrNotFound indicates the requested session does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrRootNotConfigured indicates no storage root has been set.
	ErrRootNotConfigured = errors.New("storage: storage path not configured")
	// ErrMissingIdentifier indicates a session without a chat id.
	ErrMissingIdentifier = errors.New("storage: no chat_id provided")
	// ErrLockTimeout indicates a timeout acquiring a file lock.
	ErrLockTimeout = errors.New("storage: lock acquisition timeout")

	// ErrCannotCreate, ErrNotDirectory and ErrNotWritable describe why a
	// path was refused as a storage root.
	ErrCannotCreate = errors.New("storage: cannot create directory")
	ErrNotDirectory = errors.New("storage: path is not a directory")
	ErrNotWritable  = errors.New("storage: directory is not writable")
)

// StorageError wraps storage errors with operation and entity context.
//
//	var storErr *storage.StorageError
//	if errors.As(err, &storErr) {
//		fmt.Printf("failed to %s %s %s: %v\n", storErr.Op, storErr.Entity, storErr.ID, storErr.Err)
//	}
type StorageError struct {
	// Op is the operation that failed ("save", "load", "list", "lock").
	Op string
	// Entity is the entity type ("session", "attachment", "root").
	Entity string
	// ID is the entity identifier if applicable.
	ID  string
	Err error
}

func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage: %s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// RootError explains why Root.Set refused a path. Problem is one of
// ErrCannotCreate, ErrNotDirectory or ErrNotWritable; Err is the
// underlying file system error, if any.
type RootError struct {
	Path    string
	Problem error
	Err     error
}

func (e *RootError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Problem, e.Path, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Problem, e.Path)
}

func (e *RootError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Problem}
	}
	return []error{e.Problem, e.Err}
}
