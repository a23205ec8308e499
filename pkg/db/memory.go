package db

import (
	"context"
	"sync"
)

// MemoryStore is a Store kept in process memory. Writers are serialised.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

type memoryTxn struct {
	data     map[string][]byte
	pending  map[string][]byte
	writable bool
}

func (t *memoryTxn) Get(key []byte) ([]byte, error) {
	if v, ok := t.pending[string(key)]; ok {
		return append([]byte(nil), v...), nil
	}
	if v, ok := t.data[string(key)]; ok {
		return append([]byte(nil), v...), nil
	}
	return nil, ErrNotFound
}

func (t *memoryTxn) Set(key, value []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	t.pending[string(key)] = append([]byte(nil), value...)
	return nil
}

func (t *memoryTxn) CreateIfAbsent(key, value []byte) error {
	if _, err := t.Get(key); err == nil {
		return ErrExists
	}
	return t.Set(key, value)
}

func (t *memoryTxn) Writable() bool {
	return t.writable
}

func (s *MemoryStore) View(ctx context.Context, fn func(txn Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer observeDuration("memory", "view")()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memoryTxn{data: s.data})
}

func (s *MemoryStore) Update(ctx context.Context, fn func(txn Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer observeDuration("memory", "update")()

	s.mu.Lock()
	defer s.mu.Unlock()

	txn := &memoryTxn{data: s.data, pending: make(map[string][]byte), writable: true}
	if err := fn(txn); err != nil {
		return err
	}
	for k, v := range txn.pending {
		s.data[k] = v
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
