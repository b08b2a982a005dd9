// Package store holds the invoices, products and customers extracted from
// uploaded documents and keeps their denormalized fields consistent.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Lllllllleong/autoextract/internal/models"
	"github.com/Lllllllleong/autoextract/internal/persist"
)

const saveTimeout = 10 * time.Second

// Snapshot is the durable state of the store. All four collections are saved
// together. Version grows by one with every stored change.
type Snapshot struct {
	Version        int64                  `json:"version" firestore:"version"`
	Invoices       []models.Invoice       `json:"invoices" firestore:"invoices"`
	Products       []models.Product       `json:"products" firestore:"products"`
	Customers      []models.Customer      `json:"customers" firestore:"customers"`
	ProcessedFiles []models.ProcessedFile `json:"processedFiles" firestore:"processedFiles"`
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{
		Version:        s.Version,
		Invoices:       models.CloneAll(s.Invoices),
		Products:       models.CloneAll(s.Products),
		Customers:      models.CloneAll(s.Customers),
		ProcessedFiles: slices.Clone(s.ProcessedFiles),
	}
}

// Extractor turns file references into structured entities.
type Extractor interface {
	Extract(ctx context.Context, req models.ExtractRequest) (*models.ExtractionResult, error)
}

// Store is the entity store. Several stores may share one persister, as the
// API and mail functions do in production. Every mutation is applied to the
// latest stored snapshot through Persister.Update, outside the store lock,
// and the result is installed locally only when it is newer than what the
// store already holds. Readers only ever see whole states.
type Store struct {
	mu        sync.Mutex
	state     Snapshot
	unsaved   bool
	inFlight  map[string]struct{}
	closed    bool
	persister persist.Persister[Snapshot]
	extractor Extractor
	notifier  Notifier
	logger    *slog.Logger
}

// New loads the last saved snapshot, or starts empty when there is none.
// A nil notifier logs notifications; a nil persister keeps state in memory.
func New(ctx context.Context, persister persist.Persister[Snapshot], extractor Extractor, notifier Notifier) (*Store, error) {
	if persister == nil {
		persister = persist.NewMemory[Snapshot]()
	}
	if notifier == nil {
		notifier = NewLogNotifier(slog.Default())
	}

	s := &Store{
		inFlight:  map[string]struct{}{},
		persister: persister,
		extractor: extractor,
		notifier:  notifier,
		logger:    slog.Default().With("component", "entity-store"),
	}

	snap, err := persister.Load(ctx)
	switch {
	case errors.Is(err, persist.ErrNotFound):
		s.logger.Info("No saved snapshot. Starting empty.")
	case err != nil:
		return nil, fmt.Errorf("failed to load entity snapshot: %w", err)
	default:
		s.state = snap
		s.logger.Info("Loaded entity snapshot.",
			"version", snap.Version,
			"invoices", len(snap.Invoices),
			"products", len(snap.Products),
			"customers", len(snap.Customers),
			"processedFiles", len(snap.ProcessedFiles),
		)
	}
	return s, nil
}

// Close rejects later mutations with ErrClosed. Every successful mutation is
// already stored, so Close writes nothing; local changes whose save failed
// are reported and dropped.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.unsaved {
		s.logger.Warn("Closing with changes that were never saved.", "version", s.state.Version)
	}
	return nil
}

// Refresh installs the stored snapshot when it is newer than the local state.
func (s *Store) Refresh(ctx context.Context) error {
	snap, err := s.persister.Load(ctx)
	if errors.Is(err, persist.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to reload entity snapshot: %w", err)
	}
	s.install(snap)
	return nil
}

// mutate applies fn to a copy of the latest stored state and stores the copy
// only when fn succeeds. When storage fails the change is still applied to the
// local state and the failure is logged; the next stored snapshot replaces it.
func (s *Store) mutate(fn func(st *Snapshot) error) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	var fnErr error
	next, err := s.persister.Update(ctx, func(cur Snapshot) (Snapshot, error) {
		st := cur.clone()
		if fnErr = fn(&st); fnErr != nil {
			return cur, fnErr
		}
		st.Version = cur.Version + 1
		return st, nil
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		s.logger.Error("Failed to save entity snapshot", "error", err)
		return s.applyLocal(fn)
	}
	s.install(next)
	return nil
}

func (s *Store) applyLocal(fn func(st *Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	if err := fn(&next); err != nil {
		return err
	}
	next.Version = s.state.Version + 1
	s.state = next
	s.unsaved = true
	return nil
}

// install replaces the state with next unless the store already holds the
// same or a later version. Stored snapshots always replace unsaved local
// changes.
func (s *Store) install(next Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if next.Version <= s.state.Version && !s.unsaved {
		return
	}
	s.state = next
	s.unsaved = false
}

// Snapshot returns a copy of the whole state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Store) Invoices() []models.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneAll(s.state.Invoices)
}

func (s *Store) Products() []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneAll(s.state.Products)
}

func (s *Store) Customers() []models.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneAll(s.state.Customers)
}

func (s *Store) ProcessedFiles() []models.ProcessedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.ProcessedFiles)
}

// FileStatus reports where fileURI is in its unseen, processing, success or
// error lifecycle. A success entry wins over earlier errors.
func (s *Store) FileStatus(fileURI string) models.FileStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inFlight[fileURI]; ok {
		return models.StatusProcessing
	}
	status := models.StatusUnseen
	for _, f := range s.state.ProcessedFiles {
		if f.FileURI != fileURI {
			continue
		}
		if f.Status == models.StatusSuccess {
			return models.StatusSuccess
		}
		status = f.Status
	}
	return status
}
