// Package uploads tracks files known to exist in remote storage,
// independently of whether they have been extracted.
package uploads

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

// Snapshot is the durable state of the registry.
type Snapshot struct {
	Files       []models.UploadedFile `json:"files" firestore:"files"`
	IsUploading bool                  `json:"isUploading" firestore:"isUploading"`
	IsLoading   bool                  `json:"isLoading" firestore:"isLoading"`
}

// Lister returns the authoritative list of uploaded files.
type Lister interface {
	List(ctx context.Context) ([]models.UploadedFile, error)
}

// Registry holds uploaded-file metadata and its upload/loading flags.
// Changes are applied to the latest stored snapshot, so registries in
// different processes sharing one persister keep each other's entries.
type Registry struct {
	writeMu   sync.Mutex // orders writers; never held by readers
	mu        sync.Mutex
	state     Snapshot
	persister persist.Persister[Snapshot]
	lister    Lister
	logger    *slog.Logger
}

// New loads the saved registry snapshot, or starts empty.
func New(ctx context.Context, persister persist.Persister[Snapshot], lister Lister) (*Registry, error) {
	if persister == nil {
		persister = persist.NewMemory[Snapshot]()
	}
	r := &Registry{
		persister: persister,
		lister:    lister,
		logger:    slog.Default().With("component", "upload-registry"),
	}

	snap, err := persister.Load(ctx)
	switch {
	case errors.Is(err, persist.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load upload snapshot: %w", err)
	default:
		r.state = snap
	}
	return r, nil
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{Files: slices.Clone(s.Files), IsUploading: s.IsUploading, IsLoading: s.IsLoading}
}

// update stores fn applied to the latest saved snapshot. When storage fails
// the change is applied to the local state and the failure is logged.
func (r *Registry) update(fn func(st *Snapshot)) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	next, err := r.persister.Update(ctx, func(cur Snapshot) (Snapshot, error) {
		st := cur.clone()
		fn(&st)
		return st, nil
	})
	if err != nil {
		r.logger.Error("Failed to save upload snapshot", "error", err)
		r.mu.Lock()
		next = r.state.clone()
		fn(&next)
		r.mu.Unlock()
	}

	r.mu.Lock()
	r.state = next
	r.mu.Unlock()
}

// SetFiles replaces the file list.
func (r *Registry) SetFiles(files []models.UploadedFile) {
	r.update(func(st *Snapshot) { st.Files = slices.Clone(files) })
}

// AddFile appends f.
func (r *Registry) AddFile(f models.UploadedFile) {
	r.update(func(st *Snapshot) { st.Files = append(st.Files, f) })
}

// RemoveFile drops every entry for fileURI.
func (r *Registry) RemoveFile(fileURI string) {
	r.update(func(st *Snapshot) {
		st.Files = slices.DeleteFunc(st.Files, func(f models.UploadedFile) bool { return f.FileURI == fileURI })
	})
}

// Clear empties the file list.
func (r *Registry) Clear() {
	r.update(func(st *Snapshot) { st.Files = nil })
}

// SetUploading toggles the uploading flag.
func (r *Registry) SetUploading(uploading bool) {
	r.update(func(st *Snapshot) { st.IsUploading = uploading })
}

func (r *Registry) Files() []models.UploadedFile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.state.Files)
}

// Has reports whether fileURI is in the list.
func (r *Registry) Has(fileURI string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.ContainsFunc(r.state.Files, func(f models.UploadedFile) bool { return f.FileURI == fileURI })
}

func (r *Registry) Uploading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.IsUploading
}

func (r *Registry) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.IsLoading
}

// Snapshot returns a copy of the registry state.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.clone()
}

// FetchFiles replaces the list with the lister's. A failed fetch is logged and
// leaves the list empty.
func (r *Registry) FetchFiles(ctx context.Context) {
	r.update(func(st *Snapshot) { st.IsLoading = true })

	var files []models.UploadedFile
	var err error
	if r.lister == nil {
		err = errors.New("no file lister configured")
	} else {
		files, err = r.lister.List(ctx)
	}
	if err != nil {
		r.logger.Error("Failed to fetch uploaded files", "error", err)
		files = nil
	} else {
		r.logger.Info("Fetched uploaded files.", "fileCount", len(files))
	}

	r.update(func(st *Snapshot) {
		st.Files = files
		st.IsLoading = false
	})
}
