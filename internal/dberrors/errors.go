// Package dberrors defines the error kinds surfaced by the storage engine.
// All constructors attach a stack trace via cockroachdb/errors; callers
// classify with errors.Is against the exported sentinels.
package dberrors

import "github.com/cockroachdb/errors"

var (
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrKeyNotFound        = errors.New("key not found")
	ErrCorruptHeader      = errors.New("corrupt database header")
	ErrPoolExhausted      = errors.New("buffer pool exhausted")
	ErrFreeForbidden      = errors.New("cannot free header or root page")
	ErrInvariantViolation = errors.New("critical invariant violation")
)

// DuplicateKey reports an insert of an id that already exists.
func DuplicateKey(id uint32) error {
	return errors.Wrapf(ErrDuplicateKey, "key %d", id)
}

// KeyNotFound reports a delete or lookup of a missing id.
func KeyNotFound(id uint32) error {
	return errors.Wrapf(ErrKeyNotFound, "key %d", id)
}

// CorruptHeader reports an invalid magic number at open.
func CorruptHeader(magic uint32) error {
	return errors.Wrapf(ErrCorruptHeader, "bad magic %#x", magic)
}

// FreeForbidden reports an attempt to free page 0 or 1.
func FreeForbidden(pageNum uint32) error {
	return errors.Wrapf(ErrFreeForbidden, "page %d", pageNum)
}
