package db

import (
	"context"
	"time"
)

// Store is the Redis-family database facade combining all sub-interfaces.
//
//nolint:interfacebloat // consumers depend on the narrow sub-interfaces
type Store interface {
	Pinger
	KVStore
	ExpiringStore
	HashStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// RecordStore is the durable key-value store holding canonical document records.
// Implemented by the redis and ledger drivers.
type RecordStore interface {
	Pinger
	KVStore
	Close()
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides byte-value operations with an atomic compare-and-swap.
type KVStore interface {
	// Get returns ErrKeyNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// CompareAndSwap writes value only if the stored value equals expected.
	// A nil expected means the key must be absent. Returns false when the
	// precondition did not hold.
	CompareAndSwap(ctx context.Context, key string, expected, value []byte) (bool, error)
}

// ExpiringStore provides writes with a time-to-live.
type ExpiringStore interface {
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// Remove deletes a key and reports whether it existed.
	Remove(ctx context.Context, key string) (bool, error)
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	// IndexAttributes returns the attribute names of an existing index.
	IndexAttributes(ctx context.Context, name string) ([]string, error)
	// IndexVectorDim returns the DIM of a vector attribute, 0 if absent.
	IndexVectorDim(ctx context.Context, name, attribute string) (int, error)
}

// Searcher provides search operations over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchText(ctx context.Context, q *TextQuery) (*SearchResult, error)
}
