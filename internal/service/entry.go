package service

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"hl_gateway/internal/infra"
)

// Policy decides when an entry stops being served without I/O.
type Policy uint8

const (
	// PolicyTTL entries go stale ttl after they were stored.
	PolicyTTL Policy = iota
	// PolicyInvalidatable entries follow PolicyTTL and are also emptied by
	// user-scoped invalidation.
	PolicyInvalidatable
	// PolicyPush entries are written by the event feed only. They never go
	// stale; a read on an empty entry fetches but does not store.
	PolicyPush
)

func (p Policy) String() string {
	switch p {
	case PolicyTTL:
		return "ttl"
	case PolicyInvalidatable:
		return "ttl+invalidatable"
	case PolicyPush:
		return "push"
	default:
		return "unknown"
	}
}

// FetchFunc loads a fresh value from the exchange.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Entry is one read-through cached value. The fetch always runs outside
// the lock; only the swap is done under it. Every invalidation bumps a
// generation so a fetch started earlier can never land afterwards.
type Entry[T any] struct {
	kind   string
	policy Policy
	ttl    time.Duration // <= 0: fresh until invalidated
	now    func() time.Time

	mu         sync.RWMutex
	value      T
	insertedAt time.Time
	valid      bool
	gen        uint64

	group   singleflight.Group
	metrics *infra.Metrics
	logger  *slog.Logger
}

// NewEntry creates an empty entry. metrics may be nil.
func NewEntry[T any](kind string, policy Policy, ttl time.Duration, metrics *infra.Metrics) *Entry[T] {
	return &Entry[T]{
		kind:    kind,
		policy:  policy,
		ttl:     ttl,
		now:     time.Now,
		metrics: metrics,
		logger:  slog.Default().With("module", "cache", "kind", kind),
	}
}

func (e *Entry[T]) Kind() string   { return e.kind }
func (e *Entry[T]) Policy() Policy { return e.policy }

// freshLocked must be called with mu held.
func (e *Entry[T]) freshLocked(now time.Time) bool {
	if !e.valid {
		return false
	}
	if e.policy == PolicyPush || e.ttl <= 0 {
		return true
	}
	return now.Sub(e.insertedAt) < e.ttl
}

// Get returns the cached value when fresh. Otherwise it fetches, stores and
// returns the new value; concurrent readers share one fetch. If the fetch
// fails and an older value exists, the older value is returned and the
// failure is only logged. A cold entry returns the failure.
func (e *Entry[T]) Get(ctx context.Context, fetch FetchFunc[T]) (T, error) {
	e.mu.RLock()
	if e.freshLocked(e.now()) {
		v := e.value
		e.mu.RUnlock()
		e.metrics.RecordCacheHit(e.kind)
		return v, nil
	}
	gen := e.gen
	stale, hasStale := e.value, e.valid
	e.mu.RUnlock()

	e.metrics.RecordCacheMiss(e.kind)

	if e.policy == PolicyPush {
		return fetch(ctx)
	}

	v, err := e.load(ctx, gen, fetch)
	if err != nil {
		e.metrics.RecordRefreshFailure(e.kind)
		if hasStale {
			e.logger.Warn("Refresh failed, serving stale value", slog.Any("error", err))
			return stale, nil
		}
		var zero T
		return zero, err
	}
	return v, nil
}

// Refresh fetches unconditionally and stores the result. On failure the
// previous value is kept and the error returned to the caller (the poller).
func (e *Entry[T]) Refresh(ctx context.Context, fetch FetchFunc[T]) error {
	e.mu.RLock()
	gen := e.gen
	e.mu.RUnlock()

	if _, err := e.load(ctx, gen, fetch); err != nil {
		e.metrics.RecordRefreshFailure(e.kind)
		return err
	}
	return nil
}

// load runs one shared fetch per generation. The fetch is detached from the
// first caller's cancellation; each caller still stops waiting when its own
// ctx ends.
func (e *Entry[T]) load(ctx context.Context, gen uint64, fetch FetchFunc[T]) (T, error) {
	ch := e.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		v, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		e.store(gen, v)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// store swaps in v unless the entry was invalidated or overwritten since
// the fetch started.
func (e *Entry[T]) store(gen uint64, v T) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gen != gen {
		return false
	}
	e.value = v
	e.insertedAt = e.now()
	e.valid = true
	return true
}

// Set stores a pushed value.
func (e *Entry[T]) Set(v T) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen++
	e.value = v
	e.insertedAt = e.now()
	e.valid = true
}

// Invalidate empties the entry. Reads after it returns never see a value
// stored before the call.
func (e *Entry[T]) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen++
	var zero T
	e.value = zero
	e.insertedAt = time.Time{}
	e.valid = false
}

// Peek returns the current value without any I/O, fresh or not.
func (e *Entry[T]) Peek() (T, time.Time, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.value, e.insertedAt, e.valid
}
