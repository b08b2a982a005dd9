package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// File keeps the snapshot as an indented JSON document in dir/<name>.json.
// Writes go to a temp file that is renamed over the target.
//
// Update is atomic only among users of the same *File; separate processes
// sharing dir can still overwrite each other.
type File[T any] struct {
	mu   sync.Mutex
	path string
}

// NewFile creates dir if needed and returns a persister for the named snapshot.
func NewFile[T any](dir, name string) (*File[T], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &File[T]{path: filepath.Join(dir, name+".json")}, nil
}

func (f *File[T]) Load(ctx context.Context) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readLocked()
}

func (f *File[T]) Save(ctx context.Context, v T) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeLocked(v)
}

func (f *File[T]) Update(ctx context.Context, fn func(T) (T, error)) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cur, err := f.readLocked()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return cur, err
	}
	next, err := fn(cur)
	if err != nil {
		return cur, err
	}
	if err := f.writeLocked(next); err != nil {
		return cur, err
	}
	return next, nil
}

func (f *File[T]) readLocked() (T, error) {
	var v T
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return v, ErrNotFound
	}
	if err != nil {
		return v, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return v, ErrNotFound
		}
		return v, fmt.Errorf("decode snapshot: %w", err)
	}
	return v, nil
}

func (f *File[T]) writeLocked(v T) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), "snapshot-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
