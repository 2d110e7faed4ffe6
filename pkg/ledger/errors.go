package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreIO marks a failure to read or rewrite the ledger file during a
	// mutation. It is fatal to the current run.
	ErrStoreIO = errors.New("ledger store I/O failure")
	// ErrNotFound is returned when no row matches an identity.
	ErrNotFound = errors.New("ledger row not found")
	// ErrLocked is returned when another run holds the ledger lock.
	ErrLocked = errors.New("ledger is locked by another run")
)

// StoreError describes a failed store mutation.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("ledger %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes both ErrStoreIO and the underlying cause to errors.Is/As.
func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreIO, e.Err}
}
