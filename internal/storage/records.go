package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// DefaultMaxAttempts bounds the optimistic retry loop of Records.Update.
const DefaultMaxAttempts = 16

// Records stores JSON encoded records of type T in a KV.
//
// Update serializes writers of one key inside this process with a per-key lock and guards the
// write itself with the record version, so concurrent writers in other processes are retried
// instead of overwritten.
type Records[T any] struct {
	kv          KV
	maxAttempts int
	locks       keyLock
}

func NewRecords[T any](kv KV, maxAttempts int) *Records[T] {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Records[T]{kv: kv, maxAttempts: maxAttempts, locks: keyLock{locks: map[string]*refMutex{}}}
}

// Load returns the record stored under key and its version, or ErrNotFound.
func (r *Records[T]) Load(ctx context.Context, key string) (*T, int64, error) {
	it, err := r.kv.Get(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	rec := new(T)
	if err := json.Unmarshal(it.Value, rec); err != nil {
		return nil, 0, fmt.Errorf("failed to decode record %s: %w", key, err)
	}
	return rec, it.Version, nil
}

// Replace writes rec under key if the stored version still equals version.
func (r *Records[T]) Replace(ctx context.Context, key string, rec *T, version int64) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", key, err)
	}
	_, err = r.kv.Put(ctx, key, b, version)
	return err
}

// Update loads the record under key (a zero T when absent), applies fn and writes the result back.
// fn reports whether it changed the record; unchanged records are not written. A version conflict
// reloads and reapplies fn until the attempt budget is spent.
func (r *Records[T]) Update(ctx context.Context, key string, fn func(rec *T, exists bool) (bool, error)) (*T, error) {
	unlock := r.locks.Lock(key)
	defer unlock()

	for attempt := 1; ; attempt++ {
		rec, version, err := r.Load(ctx, key)
		exists := true
		if errors.Is(err, ErrNotFound) {
			rec, version, exists = new(T), 0, false
		} else if err != nil {
			return nil, err
		}

		changed, err := fn(rec, exists)
		if err != nil {
			return nil, err
		}
		if !changed {
			return rec, nil
		}

		err = r.Replace(ctx, key, rec, version)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("failed to write record %s: %w", key, err)
		}
		if attempt >= r.maxAttempts {
			return nil, fmt.Errorf("failed to write record %s after %d attempts: %w", key, attempt, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// Delete removes the record under key. Deleting an absent key is not an error.
func (r *Records[T]) Delete(ctx context.Context, key string) error {
	unlock := r.locks.Lock(key)
	defer unlock()

	return r.kv.Delete(ctx, key)
}

type refMutex struct {
	sync.Mutex
	refs int
}

// keyLock hands out one mutex per key and forgets it once nobody holds or waits for it.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

func (l *keyLock) Lock(key string) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &refMutex{}
		l.locks[key] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
