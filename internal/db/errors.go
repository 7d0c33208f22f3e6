package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound       = errors.New("db: key not found")
	ErrIndexNotFound     = errors.New("db: index not found")
	ErrIndexExists       = errors.New("db: index already exists")
	ErrTextSearchMissing = errors.New("db: text search is not supported by this server")
	ErrKeyExists         = errors.New("db: key already exists")
	ErrWriteConflict     = errors.New("db: transaction aborted by a concurrent write")
)

// Op constants map to Valkey/Redis command names for error context.
const (
	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpIndexInfo   = "FT.INFO"
	OpSearch      = "FT.SEARCH"
	OpHSet        = "HSET"
	OpMulti       = "MULTI"
	OpExec        = "EXEC"
	OpWatch       = "WATCH"
	OpExists      = "EXISTS"
	OpGet         = "GET"
	OpSet         = "SET"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// KeyExistsError names the key that stopped a create-only write.
type KeyExistsError struct {
	Key string
}

func (e *KeyExistsError) Error() string { return "db: key already exists: " + e.Key }
func (e *KeyExistsError) Is(target error) bool { return target == ErrKeyExists }
