package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/kailas-cloud/docvault/internal/db"
	"github.com/kailas-cloud/docvault/internal/domain"
)

// RetryPolicy bounds the compare-and-swap loops of the repository.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is used when the caller passes a zero policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 16, BaseDelay: 2 * time.Millisecond, MaxDelay: 100 * time.Millisecond}
}

// backoff returns a full-jitter delay for the given zero-based attempt.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseDelay << min(attempt, 16)
	if d <= 0 || d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d <= 0 {
		return 0
	}
	return rand.N(d) + 1
}

func (p RetryPolicy) wait(ctx context.Context, attempt int) error {
	t := time.NewTimer(p.backoff(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Enumeration is the list of live document ids kept under one reserved key.
// Appends are read-modify-write cycles closed by a compare-and-swap.
type Enumeration struct {
	store   store
	key     string
	policy  RetryPolicy
	onRetry func()
}

// Load returns the ids in insertion order. An absent or undecodable value is an empty list.
func (e *Enumeration) Load(ctx context.Context) ([]string, error) {
	ids, _, err := e.read(ctx)
	return ids, err
}

// Append adds id at the end of the list. Lost races are retried with jittered
// backoff; after MaxAttempts the call fails with domain.ErrIndexContention.
func (e *Enumeration) Append(ctx context.Context, id string) error {
	for attempt := range e.policy.MaxAttempts {
		ids, raw, err := e.read(ctx)
		if err != nil {
			return err
		}

		next, err := json.Marshal(append(ids, id))
		if err != nil {
			return fmt.Errorf("marshal enumeration: %w", err)
		}

		swapped, err := e.store.CompareAndSwap(ctx, e.key, raw, next)
		if err != nil {
			return fmt.Errorf("append %s: %w: %w", id, domain.ErrBackendUnavailable, err)
		}
		if swapped {
			return nil
		}

		if e.onRetry != nil {
			e.onRetry()
		}
		if err := e.policy.wait(ctx, attempt); err != nil {
			return fmt.Errorf("append %s: %w", id, err)
		}
	}
	return fmt.Errorf("append %s after %d attempts: %w", id, e.policy.MaxAttempts, domain.ErrIndexContention)
}

// read returns the decoded ids together with the raw value they came from,
// which is the expectation for the following compare-and-swap.
func (e *Enumeration) read(ctx context.Context) ([]string, []byte, error) {
	raw, err := e.store.Get(ctx, e.key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return []string{}, nil, nil
		}
		return nil, nil, fmt.Errorf("load enumeration: %w: %w", domain.ErrBackendUnavailable, err)
	}
	if raw == nil {
		raw = []byte{}
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil || ids == nil {
		return []string{}, raw, nil
	}
	return ids, raw, nil
}
