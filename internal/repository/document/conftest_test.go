package document

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/docvault/internal/db"
	domdoc "github.com/kailas-cloud/docvault/internal/domain/document"
)

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// mockStore implements the consumer interface for tests.
// Unset hooks fall through to an in-memory map with real compare-and-swap semantics.
type mockStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte) error
	casFn func(ctx context.Context, key string, expected, value []byte) (bool, error)

	mu   sync.Mutex
	data map[string][]byte
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string][]byte)}
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return m.rawGet(key)
}

func (m *mockStore) Set(ctx context.Context, key string, value []byte) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *mockStore) CompareAndSwap(ctx context.Context, key string, expected, value []byte) (bool, error) {
	if m.casFn != nil {
		return m.casFn(ctx, key, expected, value)
	}
	return m.rawCAS(key, expected, value)
}

func (m *mockStore) rawGet(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *mockStore) rawCAS(key string, expected, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.data[key]
	switch {
	case expected == nil && ok:
		return false, nil
	case expected != nil && (!ok || string(cur) != string(expected)):
		return false, nil
	}
	m.data[key] = append([]byte(nil), value...)
	return true, nil
}

// barrier releases all waiters once n of them have arrived; later arrivals pass straight through.
type barrier struct {
	mu      sync.Mutex
	n       int
	arrived int
	release chan struct{}
}

func newBarrier(n int) *barrier {
	return &barrier{n: n, release: make(chan struct{})}
}

func (b *barrier) wait() {
	b.mu.Lock()
	b.arrived++
	switch {
	case b.arrived == b.n:
		close(b.release)
	case b.arrived > b.n:
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	<-b.release
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 64, BaseDelay: 50 * time.Microsecond, MaxDelay: time.Millisecond}
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := newMockStore()
	return New(ms, "docvault:", WithClock(func() time.Time { return testNow }), WithRetryPolicy(fastPolicy())), ms
}

func testDraft() domdoc.Draft {
	return domdoc.Draft{
		ID:      "doc-1",
		Title:   "Release notes",
		Content: "hybrid search shipped",
		Author:  "alice",
		Tags:    []string{"release"},
	}
}
