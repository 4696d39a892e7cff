package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/docvault/internal/db"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{Path: MemoryPath})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestStore_GetMissing(t *testing.T) {
	s := openMemory(t)

	_, err := s.Get(context.Background(), "docvault:doc:nope")
	assert.ErrorIs(t, err, db.ErrKeyNotFound)
}

func TestStore_SetGetLatestWins(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v1")))
	require.NoError(t, s.Set(ctx, "k", []byte("v2")))
	require.NoError(t, s.Set(ctx, "other", []byte("x")))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))
}

func TestStore_CompareAndSwap(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	ok, err := s.CompareAndSwap(ctx, "idx", nil, []byte(`["a"]`))
	require.NoError(t, err)
	assert.True(t, ok, "create-if-absent should succeed on an empty ledger")

	ok, err = s.CompareAndSwap(ctx, "idx", nil, []byte(`["b"]`))
	require.NoError(t, err)
	assert.False(t, ok, "create-if-absent must fail once the key exists")

	ok, err = s.CompareAndSwap(ctx, "idx", []byte(`["stale"]`), []byte(`["c"]`))
	require.NoError(t, err)
	assert.False(t, ok, "stale expectation must not swap")

	ok, err = s.CompareAndSwap(ctx, "idx", []byte(`["a"]`), []byte(`["a","b"]`))
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Get(ctx, "idx")
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, string(got))
}

func TestStore_ConcurrentCompareAndSwapIsAtomic(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "counter", []byte("0")))

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.CompareAndSwap(ctx, "counter", []byte("0"), []byte("1"))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one swap from the same expected value may win")
}

func TestStore_VerifyIntact(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, s.Set(ctx, "k:"+v, []byte(v)))
	}

	report, err := s.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, report.Intact)
	assert.EqualValues(t, 3, report.Entries)
	assert.Zero(t, report.BrokenSeq)
}

func TestStore_VerifyDetectsEditedRow(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, s.Set(ctx, "k:"+v, []byte(v)))
	}
	_, err := s.db.ExecContext(ctx, `UPDATE entries SET value = ? WHERE seq = 2`, []byte("tampered"))
	require.NoError(t, err)

	report, err := s.Verify(ctx)
	require.NoError(t, err)
	assert.False(t, report.Intact)
	assert.EqualValues(t, 2, report.BrokenSeq)
	assert.Equal(t, "entry hash mismatch", report.Reason)
	assert.EqualValues(t, 3, report.Entries)
}

func TestStore_VerifyDetectsDeletedRow(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, s.Set(ctx, "k:"+v, []byte(v)))
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE seq = 2`)
	require.NoError(t, err)

	report, err := s.Verify(ctx)
	require.NoError(t, err)
	assert.False(t, report.Intact)
	assert.EqualValues(t, 2, report.BrokenSeq)
}

func TestOpen_FileLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	first, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)

	_, err = Open(ctx, Config{Path: path})
	assert.ErrorIs(t, err, db.ErrLocked)

	require.NoError(t, first.Set(ctx, "k", []byte("persisted")))
	first.Close()

	reopened, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(got))
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
}
