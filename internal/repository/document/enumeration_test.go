package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/docvault/internal/db"
	"github.com/kailas-cloud/docvault/internal/domain"
)

const indexKey = "docvault:docs:index"

func newEnumeration(s store, p RetryPolicy, onRetry func()) *Enumeration {
	return &Enumeration{store: s, key: indexKey, policy: p, onRetry: onRetry}
}

func TestEnumeration_LoadAbsent(t *testing.T) {
	e := newEnumeration(newMockStore(), fastPolicy(), nil)

	ids, err := e.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ids == nil || len(ids) != 0 {
		t.Errorf("ids = %#v, want empty non-nil slice", ids)
	}
}

func TestEnumeration_LoadMalformedIsEmpty(t *testing.T) {
	for _, raw := range []string{`{not json`, `null`, `{"a":1}`} {
		ms := newMockStore()
		ms.data[indexKey] = []byte(raw)
		e := newEnumeration(ms, fastPolicy(), nil)

		ids, err := e.Load(context.Background())
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", raw, err)
		}
		if len(ids) != 0 {
			t.Errorf("%q: ids = %v, want empty", raw, ids)
		}
	}
}

func TestEnumeration_LoadBackendError(t *testing.T) {
	ms := newMockStore()
	ms.getFn = func(context.Context, string) ([]byte, error) {
		return nil, &db.Error{Op: db.OpGet, Err: errors.New("connection refused")}
	}
	e := newEnumeration(ms, fastPolicy(), nil)

	_, err := e.Load(context.Background())
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestEnumeration_AppendPreservesOrder(t *testing.T) {
	e := newEnumeration(newMockStore(), fastPolicy(), nil)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "a"} {
		if err := e.Append(ctx, id); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	ids, _ := e.Load(ctx)
	if fmt.Sprint(ids) != "[a b a]" {
		t.Errorf("ids = %v, want [a b a] (duplicates kept)", ids)
	}
}

func TestEnumeration_AppendOverwritesMalformedValue(t *testing.T) {
	ms := newMockStore()
	ms.data[indexKey] = []byte(`garbage`)
	e := newEnumeration(ms, fastPolicy(), nil)

	if err := e.Append(context.Background(), "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(ms.data[indexKey]) != `["a"]` {
		t.Errorf("stored = %s", ms.data[indexKey])
	}
}

// All N writers read the same (empty) index before anyone writes. With
// compare-and-swap every append survives.
func TestEnumeration_ConcurrentAppendsAreNotLost(t *testing.T) {
	const n = 16
	ms := newMockStore()
	b := newBarrier(n)
	ms.getFn = func(_ context.Context, key string) ([]byte, error) {
		v, err := ms.rawGet(key)
		b.wait()
		return v, err
	}

	var retries atomic.Int64
	e := newEnumeration(ms, fastPolicy(), func() { retries.Add(1) })

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- e.Append(context.Background(), fmt.Sprintf("doc-%02d", i))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	ids, err := e.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ids) != n {
		t.Fatalf("len(ids) = %d, want %d", len(ids), n)
	}
	seen := make(map[string]bool, n)
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate id %s", id)
		}
		seen[id] = true
	}
	if retries.Load() < n-1 {
		t.Errorf("retries = %d, want at least %d lost races", retries.Load(), n-1)
	}
}

// naiveAppend is the unguarded get/modify/set cycle that the enumeration replaces.
func naiveAppend(ctx context.Context, s store, id string) error {
	var ids []string
	raw, err := s.Get(ctx, indexKey)
	if err == nil {
		_ = json.Unmarshal(raw, &ids)
	}
	data, _ := json.Marshal(append(ids, id))
	return s.Set(ctx, indexKey, data)
}

// Same schedule as above without compare-and-swap: every writer overwrites
// the others and only the last one survives.
func TestNaiveAppend_LosesUpdatesUnderTheSameSchedule(t *testing.T) {
	const n = 16
	ms := newMockStore()
	b := newBarrier(n)
	ms.getFn = func(_ context.Context, key string) ([]byte, error) {
		v, err := ms.rawGet(key)
		b.wait()
		return v, err
	}

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = naiveAppend(context.Background(), ms, fmt.Sprintf("doc-%02d", i))
		}()
	}
	wg.Wait()

	var ids []string
	if err := json.Unmarshal(ms.data[indexKey], &ids); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("len(ids) = %d, want 1: %d of %d appends lost", len(ids), n-len(ids), n)
	}
}

func TestEnumeration_ContentionExhausted(t *testing.T) {
	ms := newMockStore()
	ms.casFn = func(context.Context, string, []byte, []byte) (bool, error) { return false, nil }

	var retries int
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Microsecond, MaxDelay: time.Microsecond}
	e := newEnumeration(ms, p, func() { retries++ })

	err := e.Append(context.Background(), "a")
	if !errors.Is(err, domain.ErrIndexContention) {
		t.Fatalf("expected ErrIndexContention, got %v", err)
	}
	if retries != 3 {
		t.Errorf("retries = %d, want 3", retries)
	}
}

func TestEnumeration_AppendHonorsCancellation(t *testing.T) {
	ms := newMockStore()
	ms.casFn = func(context.Context, string, []byte, []byte) (bool, error) { return false, nil }
	p := RetryPolicy{MaxAttempts: 100, BaseDelay: time.Hour, MaxDelay: time.Hour}
	e := newEnumeration(ms, p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Append(ctx, "a")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEnumeration_CASErrorIsBackendUnavailable(t *testing.T) {
	ms := newMockStore()
	ms.casFn = func(context.Context, string, []byte, []byte) (bool, error) {
		return false, errors.New("EVAL: timeout")
	}
	e := newEnumeration(ms, fastPolicy(), nil)

	err := e.Append(context.Background(), "a")
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestRetryPolicy_BackoffBounded(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	for attempt := range 40 {
		d := p.backoff(attempt)
		if d <= 0 || d > p.MaxDelay {
			t.Fatalf("backoff(%d) = %v, want (0, %v]", attempt, d, p.MaxDelay)
		}
	}
}
