package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Memory keeps the snapshot in process. Values are stored encoded so callers
// never share memory with the saved copy.
type Memory[T any] struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

// NewMemory returns an empty in-memory persister.
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{}
}

func (m *Memory[T]) Load(ctx context.Context) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decodeLocked()
}

func (m *Memory[T]) Save(ctx context.Context, v T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.storeLocked(v)
}

func (m *Memory[T]) Update(ctx context.Context, fn func(T) (T, error)) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, err := m.decodeLocked()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return cur, err
	}
	next, err := fn(cur)
	if err != nil {
		return cur, err
	}
	if err := m.storeLocked(next); err != nil {
		return cur, err
	}
	return next, nil
}

// Saves reports how many values were stored, by Save or Update.
func (m *Memory[T]) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory[T]) decodeLocked() (T, error) {
	var v T
	if m.data == nil {
		return v, ErrNotFound
	}
	if err := json.Unmarshal(m.data, &v); err != nil {
		return v, fmt.Errorf("decode snapshot: %w", err)
	}
	return v, nil
}

func (m *Memory[T]) storeLocked(v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	m.data = data
	m.saves++
	return nil
}
