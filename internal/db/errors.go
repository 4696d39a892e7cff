package db

import "errors"

// Sentinel errors shared by the record stores and index backends.
var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrIndexNotFound = errors.New("db: index not found")
	ErrIndexExists   = errors.New("db: index already exists")
	ErrLocked        = errors.New("db: store locked by another process")
)

// Operation names recorded in Error. Redis-backed stores use the command
// name; the ledger uses its own statement names.
const (
	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpIndexInfo   = "FT.INFO"
	OpSearch      = "FT.SEARCH"
	OpDel         = "DEL"
	OpHGetAll     = "HGETALL"
	OpHSet        = "HSET"
	OpGet         = "GET"
	OpSet         = "SET"
	OpEval        = "EVAL"

	OpAppend = "ledger.append"
	OpRead   = "ledger.read"
	OpVerify = "ledger.verify"
)

// Error records the failed operation and, when known, the key or index it
// targeted.
type Error struct {
	Op  string
	Key string
	Err error
}

// Wrap returns nil for a nil err, otherwise an *Error.
func Wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Key: key, Err: err}
}

func (e *Error) Error() string {
	if e.Key == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Key + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
