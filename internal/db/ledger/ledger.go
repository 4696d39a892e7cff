// Package ledger implements the record store as an append-only, hash-chained
// SQLite log. Every write appends an entry whose hash covers the previous
// entry's hash, so any in-place edit of history breaks the chain and is
// reported by Verify.
package ledger

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/kailas-cloud/docvault/internal/db"
)

// Compile-time check: Store implements db.RecordStore.
var _ db.RecordStore = (*Store)(nil)

// MemoryPath opens a private in-memory ledger (tests, ephemeral runs).
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	seq       INTEGER PRIMARY KEY,
	key       TEXT    NOT NULL,
	value     BLOB    NOT NULL,
	prev_hash BLOB    NOT NULL,
	hash      BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_key ON entries(key, seq);
`

// Config holds ledger file parameters.
type Config struct {
	Path string
}

// Store is an append-only key-value log over SQLite.
type Store struct {
	db   *sql.DB
	lock *flock.Flock

	// mu serializes appends so seq and prev_hash are read and written as one step.
	mu sync.Mutex
}

// Open opens (or creates) the ledger at cfg.Path and takes an exclusive file
// lock next to it. A second process opening the same ledger gets db.ErrLocked.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	var lock *flock.Flock
	dsn := cfg.Path
	if cfg.Path != MemoryPath {
		lock = flock.New(cfg.Path + ".lock")
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock ledger: %w", err)
		}
		if !locked {
			return nil, db.ErrLocked
		}
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		unlock(lock)
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// One connection: an in-memory database exists only within it.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = FULL",
	}
	for _, p := range pragmas {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			_ = conn.Close()
			unlock(lock)
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		_ = conn.Close()
		unlock(lock)
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: conn, lock: lock}, nil
}

// Ping checks that the database handle is usable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close releases the database and the file lock.
func (s *Store) Close() {
	_ = s.db.Close()
	unlock(s.lock)
}

// Get returns the value of the latest entry for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM entries WHERE key = ? ORDER BY seq DESC LIMIT 1`, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrKeyNotFound
		}
		return nil, db.Wrap(db.OpRead, key, err)
	}
	return value, nil
}

// Set appends a new entry for key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return db.Wrap(db.OpAppend, key, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := appendEntry(ctx, tx, key, value); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return db.Wrap(db.OpAppend, key, err)
	}
	return nil
}

// CompareAndSwap appends value for key only when the latest entry still equals expected
// (or, with a nil expected, when key has no entry).
func (s *Store) CompareAndSwap(ctx context.Context, key string, expected, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, db.Wrap(db.OpAppend, key, err)
	}
	defer func() { _ = tx.Rollback() }()

	var current []byte
	err = tx.QueryRowContext(ctx,
		`SELECT value FROM entries WHERE key = ? ORDER BY seq DESC LIMIT 1`, key,
	).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if expected != nil {
			return false, nil
		}
	case err != nil:
		return false, db.Wrap(db.OpRead, key, err)
	default:
		if expected == nil || string(current) != string(expected) {
			return false, nil
		}
	}

	if err := appendEntry(ctx, tx, key, value); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, db.Wrap(db.OpAppend, key, err)
	}
	return true, nil
}

func appendEntry(ctx context.Context, tx *sql.Tx, key string, value []byte) error {
	var (
		lastSeq  int64
		prevHash []byte
	)
	err := tx.QueryRowContext(ctx,
		`SELECT seq, hash FROM entries ORDER BY seq DESC LIMIT 1`,
	).Scan(&lastSeq, &prevHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return db.Wrap(db.OpAppend, key, err)
	}
	if prevHash == nil {
		prevHash = genesisHash()
	}
	if value == nil {
		value = []byte{}
	}

	seq := lastSeq + 1
	h := entryHash(seq, prevHash, key, value)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO entries (seq, key, value, prev_hash, hash) VALUES (?, ?, ?, ?, ?)`,
		seq, key, value, prevHash, h,
	)
	if err != nil {
		return db.Wrap(db.OpAppend, key, err)
	}
	return nil
}

// entryHash = SHA-256(prev_hash || seq || len(key) || key || value).
func entryHash(seq int64, prevHash []byte, key string, value []byte) []byte {
	h := sha256.New()
	h.Write(prevHash)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(seq))
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(len(key)))
	h.Write(buf[:])
	h.Write([]byte(key))
	h.Write(value)
	return h.Sum(nil)
}

func genesisHash() []byte {
	return make([]byte, sha256.Size)
}

func unlock(l *flock.Flock) {
	if l != nil {
		_ = l.Unlock()
	}
}
