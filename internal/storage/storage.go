package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when no record is stored under the key.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned by Put when the stored version does not match the expected one.
	ErrConflict = errors.New("record version conflict")
)

// Item is a stored value together with its write version.
type Item struct {
	Value   []byte
	Version int64
}

// KV is the key-value persistence contract the engine is built on. Every successful Put
// bumps the record version; Put with expected version 0 only succeeds if the key is absent.
type KV interface {
	Get(ctx context.Context, key string) (*Item, error)
	Put(ctx context.Context, key string, value []byte, version int64) (int64, error)
	Delete(ctx context.Context, key string) error
	Close() error
}
