// Package persist stores durable snapshots of application state. Each
// snapshot is a single value saved under a fixed storage name.
package persist

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("snapshot not found")

// Persister loads and saves one snapshot value.
//
// Update reloads the stored value, passes it to fn and stores the result as
// one atomic step, so writers sharing a backend never overwrite each other's
// changes. fn receives the zero value when nothing has been saved yet. When fn
// fails nothing is stored and its error is returned. fn may run more than once
// and must not have side effects.
type Persister[T any] interface {
	Load(ctx context.Context) (T, error)
	Save(ctx context.Context, v T) error
	Update(ctx context.Context, fn func(T) (T, error)) (T, error)
}

// Storage names of the snapshots kept by the application.
const (
	EntitiesSnapshot = "autoextract-entities"
	UploadsSnapshot  = "autoextract-uploads"
	MailboxSnapshot  = "autoextract-mailbox"
)
