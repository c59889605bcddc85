// Package repo implements the data persistence layer for bot entities,
// backed by GORM. This file centralizes the error taxonomy shared by the
// schema catalog, the entity repository, and the dynamic settings store.
//
// Error semantics:
//   - Every statement failure is reported as a *StorageError carrying the
//     operation and table; errors.Unwrap reaches the driver/gorm error, so
//     errors.Is(err, ErrNotFound) keeps working.
//   - A stored setting value that cannot be converted to the requested type
//     is a *CoercionError wrapped in a *StorageError.
package repo

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience.
var ErrNotFound = gorm.ErrRecordNotFound

var (
	// ErrNoIdentity is returned when a row-level operation needs the surrogate
	// ID of an entity that was never saved.
	ErrNoIdentity = errors.New("entity has no identity")

	// ErrInvalidField is returned for setting names that cannot be used as a
	// bracket-quoted column identifier.
	ErrInvalidField = errors.New("invalid setting name")

	// ErrNoSuchTable is returned when introspection finds no columns.
	ErrNoSuchTable = errors.New("no such table")

	// ErrDuplicate indicates that an update id was already processed.
	ErrDuplicate = errors.New("duplicate")
)

// StorageError reports a failed storage operation.
type StorageError struct {
	Op    string // e.g. "save", "extend schema", "get setting"
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// CoercionError reports a stored setting value that does not convert to the
// requested kind.
type CoercionError struct {
	Field string
	Value any
	Want  Kind
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("setting %q: cannot convert %T(%v) to %s", e.Field, e.Value, e.Value, e.Want)
}

func storageErr(op, table string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Table: table, Err: err}
}
