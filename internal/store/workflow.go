package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/Lllllllleong/autoextract/internal/models"
)

// AcceptedMIMEType is the only file type forwarded to extraction.
const AcceptedMIMEType = "application/pdf"

// NotificationToken is the token under which all notifications of one
// ProcessFile call for fileURI are raised.
func NotificationToken(fileURI string) string {
	return "process:" + fileURI
}

// ProcessFile runs one extraction round-trip for fileURI and merges the
// result into the store.
//
// The stored snapshot is reloaded first. A file that already has a success
// entry, or is currently being processed, is skipped without any call or
// state change. A result whose file gained a success entry elsewhere while it
// was being extracted is dropped. Types other than
// AcceptedMIMEType are rejected with ErrUnsupportedMIMEType. Extraction
// failures are recorded as an error entry and returned wrapped; the entity
// collections are left untouched.
func (s *Store) ProcessFile(ctx context.Context, fileURI, mimeType string) error {
	logCtx := s.logger.With("fileUri", fileURI, "mimeType", mimeType)
	token := NotificationToken(fileURI)

	if err := s.Refresh(ctx); err != nil {
		logCtx.Warn("Could not reload entity snapshot. Using local state.", "error", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if hasSuccess(s.state.ProcessedFiles, fileURI) {
		s.mu.Unlock()
		logCtx.Info("File already processed. Skipping.")
		return nil
	}
	if _, busy := s.inFlight[fileURI]; busy {
		s.mu.Unlock()
		logCtx.Info("File is already being processed. Skipping.")
		return nil
	}
	if mimeType != AcceptedMIMEType {
		s.mu.Unlock()
		logCtx.Warn("Rejected file with unsupported type.")
		s.notifier.Error(token, fmt.Sprintf("Unsupported file type %q. Only PDF files can be processed.", mimeType))
		return fmt.Errorf("%w: %s", ErrUnsupportedMIMEType, mimeType)
	}
	s.inFlight[fileURI] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inFlight, fileURI)
		s.mu.Unlock()
	}()

	s.notifier.Loading(token, "Processing file...")
	logCtx.Info("Starting extraction.")

	result, err := s.extract(ctx, fileURI, mimeType)
	if err != nil {
		logCtx.Error("Extraction failed", "error", err)
		entry := models.ProcessedFile{FileURI: fileURI, Status: models.StatusError, Error: err.Error()}
		if recErr := s.mutate(func(st *Snapshot) error {
			st.ProcessedFiles = append(st.ProcessedFiles, entry)
			return nil
		}); recErr != nil {
			logCtx.Error("Failed to record extraction error", "error", recErr)
		}
		s.notifier.Error(token, "Failed to process file: "+err.Error())
		return fmt.Errorf("process %s: %w", fileURI, err)
	}

	err = s.mutate(func(st *Snapshot) error {
		if hasSuccess(st.ProcessedFiles, fileURI) {
			return errMergedElsewhere
		}
		st.Invoices = append(st.Invoices, models.CloneAll(result.Invoices)...)
		st.Products = append(st.Products, models.CloneAll(result.Products)...)
		st.Customers = append(st.Customers, models.CloneAll(result.Customers)...)
		st.ProcessedFiles = append(st.ProcessedFiles, models.ProcessedFile{FileURI: fileURI, Status: models.StatusSuccess})
		return nil
	})
	if errors.Is(err, errMergedElsewhere) {
		logCtx.Info("File was merged by another instance. Dropping duplicate result.")
		if err := s.Refresh(ctx); err != nil {
			logCtx.Warn("Could not reload entity snapshot.", "error", err)
		}
		s.notifier.Success(token, "File was already processed.")
		return nil
	}
	if err != nil {
		logCtx.Error("Failed to merge extraction result", "error", err)
		s.notifier.Error(token, "Failed to process file: "+err.Error())
		return fmt.Errorf("process %s: %w", fileURI, err)
	}

	logCtx.Info("Extraction merged.",
		"invoices", len(result.Invoices),
		"products", len(result.Products),
		"customers", len(result.Customers),
	)
	s.notifier.Success(token, fmt.Sprintf("Extracted %d invoices, %d products and %d customers.",
		len(result.Invoices), len(result.Products), len(result.Customers)))
	return nil
}

func (s *Store) extract(ctx context.Context, fileURI, mimeType string) (*models.ExtractionResult, error) {
	if s.extractor == nil {
		return nil, errors.New("no extractor configured")
	}
	result, err := s.extractor.Extract(ctx, models.ExtractRequest{
		Files:  []models.FileRef{{FileURI: fileURI, MimeType: mimeType}},
		Prompt: models.PromptInvoiceExtraction,
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = &models.ExtractionResult{}
	}
	return result, nil
}

// errMergedElsewhere aborts a merge when the stored state already has a
// success entry for the file.
var errMergedElsewhere = errors.New("file already merged")

func hasSuccess(files []models.ProcessedFile, fileURI string) bool {
	return slices.ContainsFunc(files, func(f models.ProcessedFile) bool {
		return f.FileURI == fileURI && f.Status == models.StatusSuccess
	})
}

// RemoveProcessedFile drops the tracking entries for fileURI and clears all
// invoices, products and customers. Entities are not attributed to the file
// they came from, so every collection is cleared regardless of which file is
// removed.
// TODO: record the source fileUri on each entity and clear only those.
func (s *Store) RemoveProcessedFile(fileURI string) error {
	return s.mutate(func(st *Snapshot) error {
		before := len(st.Invoices) + len(st.Products) + len(st.Customers)
		st.ProcessedFiles = slices.DeleteFunc(st.ProcessedFiles, func(f models.ProcessedFile) bool {
			return f.FileURI == fileURI
		})
		st.Invoices = nil
		st.Products = nil
		st.Customers = nil
		if before > 0 {
			s.logger.Warn("Removing a processed file cleared every entity collection.",
				"fileUri", fileURI, "entitiesDropped", before)
		}
		return nil
	})
}
