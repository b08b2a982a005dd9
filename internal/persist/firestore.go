package persist

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore keeps the snapshot as one document, collection/<name>. T must be
// a struct Firestore can encode.
type Firestore[T any] struct {
	client *firestore.Client
	doc    *firestore.DocumentRef
}

// NewFirestore returns a persister for the named snapshot in collection.
func NewFirestore[T any](client *firestore.Client, collection, name string) *Firestore[T] {
	return &Firestore[T]{client: client, doc: client.Collection(collection).Doc(name)}
}

func (f *Firestore[T]) Load(ctx context.Context) (T, error) {
	var v T
	snap, err := f.doc.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return v, ErrNotFound
	}
	if err != nil {
		return v, fmt.Errorf("failed to read snapshot %s: %w", f.doc.ID, err)
	}
	if err := snap.DataTo(&v); err != nil {
		return v, fmt.Errorf("failed to decode snapshot %s: %w", f.doc.ID, err)
	}
	return v, nil
}

func (f *Firestore[T]) Save(ctx context.Context, v T) error {
	if _, err := f.doc.Set(ctx, v); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", f.doc.ID, err)
	}
	return nil
}

// Update runs fn inside a Firestore transaction. A concurrent write to the
// document makes Firestore retry the transaction with the newer value.
func (f *Firestore[T]) Update(ctx context.Context, fn func(T) (T, error)) (T, error) {
	var next T
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var cur T
		snap, err := tx.Get(f.doc)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return fmt.Errorf("failed to read snapshot %s: %w", f.doc.ID, err)
		default:
			if err := snap.DataTo(&cur); err != nil {
				return fmt.Errorf("failed to decode snapshot %s: %w", f.doc.ID, err)
			}
		}

		v, err := fn(cur)
		if err != nil {
			return err
		}
		next = v
		return tx.Set(f.doc, v)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return next, nil
}
