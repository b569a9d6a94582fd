package storage

import (
	"context"
	"sync"
)

type memoryItem struct {
	Item
	deleted bool
}

// Memory is a process-local KV, used for development runs and tests.
type Memory struct {
	mu    sync.Mutex
	items map[string]memoryItem
}

func NewMemory() *Memory {
	return &Memory{items: map[string]memoryItem{}}
}

func (m *Memory) Get(ctx context.Context, key string) (*Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[key]
	if !ok || it.deleted {
		return nil, ErrNotFound
	}
	return &Item{Value: append([]byte(nil), it.Value...), Version: it.Version}, nil
}

func (m *Memory) Put(ctx context.Context, key string, value []byte, version int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[key]
	live := ok && !it.deleted
	if version == 0 && live || version != 0 && (!live || it.Version != version) {
		return 0, ErrConflict
	}
	next := it.Version + 1
	m.items[key] = memoryItem{Item: Item{Value: append([]byte(nil), value...), Version: next}}
	return next, nil
}

// Delete leaves a tombstone so the version keeps growing across re-creation.
func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if it, ok := m.items[key]; ok && !it.deleted {
		m.items[key] = memoryItem{Item: Item{Version: it.Version + 1}, deleted: true}
	}
	return nil
}

func (m *Memory) Close() error {
	return nil
}
