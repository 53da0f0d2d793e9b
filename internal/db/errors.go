package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
	ErrUnknownOp   = errors.New("db: unknown mutation op")
)

// Op constants name the backend command for error context.
const (
	OpGet     = "GET"
	OpSet     = "SET"
	OpScan    = "SCAN"
	OpRPush   = "RPUSH"
	OpLRange  = "LRANGE"
	OpExists  = "EXISTS"
	OpMulti   = "MULTI"
	OpSelect  = "SELECT"
	OpInsert  = "INSERT"
	OpUpdate  = "UPDATE"
	OpCount   = "COUNT"
	OpBegin   = "BEGIN"
	OpCommit  = "COMMIT"
	OpMigrate = "MIGRATE"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
