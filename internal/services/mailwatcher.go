package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Lllllllleong/autoextract/internal/gcp"
	"github.com/Lllllllleong/autoextract/internal/models"
	"github.com/Lllllllleong/autoextract/internal/persist"
	"golang.org/x/sync/errgroup"
)

// ErrNoTopic is returned by StartWatch when no Pub/Sub topic is configured.
var ErrNoTopic = errors.New("no gmail pub/sub topic configured")

const maxConcurrentMessages = 4

// MailSource reads the watched mailbox. MessagesSince fails with
// gcp.ErrHistoryExpired when historyID is too old to be listed.
type MailSource interface {
	Watch(ctx context.Context, topic string) (*models.WatchResponse, error)
	MessagesSince(ctx context.Context, historyID uint64) ([]string, error)
	Attachments(ctx context.Context, messageID string) ([]models.Attachment, error)
}

// AttachmentUploader stores an attachment and returns its remote reference.
type AttachmentUploader interface {
	Upload(ctx context.Context, displayName, mimeType string, data []byte) (*models.UploadedFile, error)
}

// PurchaseOrderClassifier decides whether a stored document should be extracted.
type PurchaseOrderClassifier interface {
	Classify(ctx context.Context, fileURI, mimeType string) (*models.Classification, error)
}

// FileProcessor runs the extraction workflow for a stored document.
type FileProcessor interface {
	ProcessFile(ctx context.Context, fileURI, mimeType string) error
}

// FileTracker records uploaded files. *uploads.Registry satisfies it.
type FileTracker interface {
	Has(fileURI string) bool
	AddFile(f models.UploadedFile)
}

// MailReport summarizes one notification.
type MailReport struct {
	Messages       int `json:"messages"`
	Attachments    int `json:"attachments"`
	PurchaseOrders int `json:"purchaseOrders"`
	Processed      int `json:"processed"`
	Failed         int `json:"failed"`
}

// MailWatcherConfig holds the fixed settings of the mail pipeline.
type MailWatcherConfig struct {
	Topic string
}

// MailWatcher pulls purchase orders out of a Gmail inbox and runs them
// through the extraction workflow.
type MailWatcher struct {
	source     MailSource
	uploader   AttachmentUploader
	classifier PurchaseOrderClassifier
	processor  FileProcessor
	tracker    FileTracker
	checkpoint persist.Persister[models.MailboxState]
	config     MailWatcherConfig
}

// NewMailWatcher wires the pipeline. tracker may be nil.
func NewMailWatcher(source MailSource, uploader AttachmentUploader, classifier PurchaseOrderClassifier, processor FileProcessor, tracker FileTracker, checkpoint persist.Persister[models.MailboxState], config MailWatcherConfig) *MailWatcher {
	return &MailWatcher{
		source:     source,
		uploader:   uploader,
		classifier: classifier,
		processor:  processor,
		tracker:    tracker,
		checkpoint: checkpoint,
		config:     config,
	}
}

// ParseGmailNotification decodes the data of a Pub/Sub push event, either
// the full envelope {"message":{"data":...}} or the bare message.
func ParseGmailNotification(data []byte) (*models.GmailNotification, error) {
	var envelope struct {
		Message struct {
			Data      []byte `json:"data"`
			MessageID string `json:"messageId"`
		} `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode pub/sub envelope: %w", err)
	}
	if len(envelope.Message.Data) == 0 {
		return nil, errors.New("pub/sub message has no data")
	}

	var n models.GmailNotification
	if err := json.Unmarshal(envelope.Message.Data, &n); err != nil {
		return nil, fmt.Errorf("failed to decode gmail notification: %w", err)
	}
	if n.HistoryID == 0 {
		return nil, errors.New("gmail notification has no historyId")
	}
	return &n, nil
}

// StartWatch (re)registers the Gmail watch. The first registration seeds the
// history checkpoint.
func (w *MailWatcher) StartWatch(ctx context.Context) (*models.WatchResponse, error) {
	if w.config.Topic == "" {
		return nil, ErrNoTopic
	}
	resp, err := w.source.Watch(ctx, w.config.Topic)
	if err != nil {
		slog.Error("Failed to start gmail watch", "error", err, "topic", w.config.Topic)
		return nil, err
	}

	_, err = w.checkpoint.Update(ctx, func(cur models.MailboxState) (models.MailboxState, error) {
		if cur.HistoryID != 0 {
			return cur, nil
		}
		return models.MailboxState{HistoryID: int64(resp.HistoryID)}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to seed mailbox checkpoint: %w", err)
	}

	slog.Info("Gmail watch registered.", "historyId", resp.HistoryID, "expiration", resp.Expiration)
	return resp, nil
}

// HandleNotification processes every message added since the checkpoint and
// advances it to n.HistoryID. A failing message or attachment is counted and
// logged without stopping the others.
func (w *MailWatcher) HandleNotification(ctx context.Context, n *models.GmailNotification) (*MailReport, error) {
	logCtx := slog.With("emailAddress", n.EmailAddress, "historyId", n.HistoryID)

	state, err := w.checkpoint.Load(ctx)
	if errors.Is(err, persist.ErrNotFound) {
		logCtx.Warn("No mailbox checkpoint. Seeding from notification.")
		return &MailReport{}, w.saveCheckpoint(ctx, n)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mailbox checkpoint: %w", err)
	}

	start := uint64(state.HistoryID)
	if n.HistoryID <= start {
		logCtx.Info("Stale notification. Skipping.", "checkpoint", start)
		return &MailReport{}, nil
	}

	ids, err := w.source.MessagesSince(ctx, start)
	if errors.Is(err, gcp.ErrHistoryExpired) {
		// Messages between the checkpoint and n are not recoverable.
		logCtx.Warn("Mailbox checkpoint expired. Reseeding from notification.", "checkpoint", start, "error", err)
		return &MailReport{}, w.saveCheckpoint(ctx, n)
	}
	if err != nil {
		logCtx.Error("Failed to list new messages", "error", err)
		return nil, err
	}
	logCtx.Info("Found new messages.", "messageCount", len(ids), "checkpoint", start)

	report := &MailReport{Messages: len(ids)}
	var mu sync.Mutex
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentMessages)
	for _, id := range ids {
		eg.Go(func() error {
			r := w.handleMessage(gctx, id)
			mu.Lock()
			report.Attachments += r.Attachments
			report.PurchaseOrders += r.PurchaseOrders
			report.Processed += r.Processed
			report.Failed += r.Failed
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	if err := w.saveCheckpoint(ctx, n); err != nil {
		return report, err
	}
	logCtx.Info("Notification handled.",
		"attachments", report.Attachments,
		"purchaseOrders", report.PurchaseOrders,
		"processed", report.Processed,
		"failed", report.Failed,
	)
	return report, nil
}

func (w *MailWatcher) handleMessage(ctx context.Context, messageID string) MailReport {
	logCtx := slog.With("messageId", messageID)
	var r MailReport

	attachments, err := w.source.Attachments(ctx, messageID)
	if err != nil {
		logCtx.Error("Failed to fetch attachments", "error", err)
		r.Failed++
		return r
	}

	for _, att := range attachments {
		if !SupportedUpload(att.MimeType) {
			logCtx.Info("Skipping unsupported attachment.", "filename", att.Filename, "mimeType", att.MimeType)
			continue
		}
		r.Attachments++
		attLog := logCtx.With("filename", att.Filename, "mimeType", att.MimeType)

		uploaded, err := w.uploader.Upload(ctx, att.Filename, att.MimeType, att.Data)
		if err != nil {
			attLog.Error("Failed to upload attachment", "error", err)
			r.Failed++
			continue
		}
		if w.tracker != nil && !w.tracker.Has(uploaded.FileURI) {
			w.tracker.AddFile(*uploaded)
		}

		verdict, err := w.classifier.Classify(ctx, uploaded.FileURI, uploaded.MimeType)
		if err != nil {
			attLog.Error("Failed to classify attachment", "error", err)
			r.Failed++
			continue
		}
		if !verdict.IsPurchaseOrder {
			attLog.Info("Attachment is not a purchase order.", "reason", verdict.Reason)
			continue
		}
		r.PurchaseOrders++

		if err := w.processor.ProcessFile(ctx, uploaded.FileURI, uploaded.MimeType); err != nil {
			attLog.Error("Failed to process purchase order", "error", err, "fileUri", uploaded.FileURI)
			r.Failed++
			continue
		}
		r.Processed++
	}
	return r
}

// saveCheckpoint advances the checkpoint to n.HistoryID. A checkpoint already
// moved further by a concurrent notification is kept.
func (w *MailWatcher) saveCheckpoint(ctx context.Context, n *models.GmailNotification) error {
	_, err := w.checkpoint.Update(ctx, func(cur models.MailboxState) (models.MailboxState, error) {
		if uint64(cur.HistoryID) >= n.HistoryID {
			return cur, nil
		}
		return models.MailboxState{EmailAddress: n.EmailAddress, HistoryID: int64(n.HistoryID)}, nil
	})
	if err != nil {
		return fmt.Errorf("failed to save mailbox checkpoint: %w", err)
	}
	return nil
}
