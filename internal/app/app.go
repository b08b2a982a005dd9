// Package app builds the component graph shared by the function entry points
// and the local runner.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/autoextract/internal/client"
	"github.com/Lllllllleong/autoextract/internal/config"
	"github.com/Lllllllleong/autoextract/internal/gcp"
	"github.com/Lllllllleong/autoextract/internal/handlers"
	"github.com/Lllllllleong/autoextract/internal/models"
	"github.com/Lllllllleong/autoextract/internal/persist"
	"github.com/Lllllllleong/autoextract/internal/services"
	"github.com/Lllllllleong/autoextract/internal/store"
	"github.com/Lllllllleong/autoextract/internal/uploads"
	"github.com/gin-gonic/gin"
)

// fileBackend is what the API needs from upload storage. Both the bucket
// store and the remote client provide it.
type fileBackend interface {
	handlers.FileService
	uploads.Lister
	services.AttachmentUploader
}

type App struct {
	Config    config.Config
	Store     *store.Store
	Board     *store.Board
	Registry  *uploads.Registry
	Files     fileBackend
	Extractor store.Extractor
	// Mail is nil when no Gmail topic is configured.
	Mail *services.MailWatcher

	closers []func() error
}

// New connects to the configured backends. With EXTRACTION_URL set, files and
// extraction go through the remote API and no storage or Vertex AI client is
// created unless the mail pipeline needs the classifier.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config
	remote := cfg.ExtractionURL != ""
	mailEnabled := cfg.GmailTopic != ""

	var fs *firestore.Client
	if cfg.StateBackend == config.BackendFirestore {
		var err error
		fs, err = gcp.NewFirestoreClient(ctx, cfg.ProjectID, cfg.FirestoreDatabase)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, fs.Close)
	}

	var vertex *gcp.VertexClient
	if !remote || mailEnabled {
		var err error
		vertex, err = gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.Region, cfg.ModelName)
		if err != nil {
			return fmt.Errorf("failed to create Vertex AI client: %w", err)
		}
		a.closers = append(a.closers, vertex.Close)
	}

	if remote {
		c := client.New(cfg.ExtractionURL, nil)
		a.Files = c
		a.Extractor = c
		slog.Info("Using remote extraction API.", "url", cfg.ExtractionURL)
	} else {
		gcs, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("failed to create storage client: %w", err)
		}
		a.closers = append(a.closers, gcs.Close)
		a.Files = services.NewFileStore(gcs, cfg.UploadBucket)
		a.Extractor = services.NewExtractor(vertex.ExtractorModel, gcp.Prompts)
	}

	entities, err := newPersister[store.Snapshot](cfg, fs, persist.EntitiesSnapshot)
	if err != nil {
		return err
	}
	a.Board = store.NewBoard(store.NewLogNotifier(slog.Default()))
	a.Store, err = store.New(ctx, entities, a.Extractor, a.Board)
	if err != nil {
		return err
	}

	uploadState, err := newPersister[uploads.Snapshot](cfg, fs, persist.UploadsSnapshot)
	if err != nil {
		return err
	}
	a.Registry, err = uploads.New(ctx, uploadState, a.Files)
	if err != nil {
		return err
	}

	if mailEnabled {
		source, err := gcp.NewGmailSource(ctx, cfg.GmailUser)
		if err != nil {
			return err
		}
		checkpoint, err := newPersister[models.MailboxState](cfg, fs, persist.MailboxSnapshot)
		if err != nil {
			return err
		}
		a.Mail = services.NewMailWatcher(
			source,
			a.Files,
			services.NewClassifier(vertex.ClassifierModel),
			a.Store,
			a.Registry,
			checkpoint,
			services.MailWatcherConfig{Topic: cfg.GmailTopic},
		)
	}

	slog.Info("Application initialized.",
		"stateBackend", cfg.StateBackend,
		"remoteExtraction", remote,
		"mailPipeline", mailEnabled,
		"bucket", cfg.UploadBucket,
	)
	return nil
}

func newPersister[T any](cfg config.Config, fs *firestore.Client, name string) (persist.Persister[T], error) {
	switch cfg.StateBackend {
	case config.BackendFirestore:
		if fs == nil {
			return nil, errors.New("firestore backend selected without a firestore client")
		}
		return persist.NewFirestore[T](fs, cfg.FirestoreCollection, name), nil
	case config.BackendFile:
		f, err := persist.NewFile[T](cfg.DataDir, name)
		if err != nil {
			return nil, err
		}
		return f, nil
	case config.BackendMemory:
		return persist.NewMemory[T](), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
	}
}

// Router returns the HTTP API over the app's components.
func (a *App) Router() *gin.Engine {
	var mail handlers.MailService
	if a.Mail != nil {
		mail = a.Mail
	}
	return handlers.NewRouter(handlers.Deps{
		Files:          a.Files,
		Extractor:      a.Extractor,
		Store:          a.Store,
		Board:          a.Board,
		Registry:       a.Registry,
		Mail:           mail,
		MaxUploadBytes: a.Config.MaxUploadBytes,
	})
}

// Close saves the final store snapshot and releases every client.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
