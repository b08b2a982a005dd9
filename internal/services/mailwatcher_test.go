package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Lllllllleong/autoextract/internal/gcp"
	"github.com/Lllllllleong/autoextract/internal/models"
	"github.com/Lllllllleong/autoextract/internal/persist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	watch       *models.WatchResponse
	ids         []string
	listErr     error
	attachments map[string][]models.Attachment
	sinceCalls  []uint64
}

func (f *fakeSource) Watch(ctx context.Context, topic string) (*models.WatchResponse, error) {
	return f.watch, nil
}

func (f *fakeSource) MessagesSince(ctx context.Context, historyID uint64) ([]string, error) {
	f.sinceCalls = append(f.sinceCalls, historyID)
	return f.ids, f.listErr
}

func (f *fakeSource) Attachments(ctx context.Context, messageID string) ([]models.Attachment, error) {
	atts, ok := f.attachments[messageID]
	if !ok {
		return nil, fmt.Errorf("message %s gone", messageID)
	}
	return atts, nil
}

type fakeUploader struct{}

func (fakeUploader) Upload(ctx context.Context, displayName, mimeType string, data []byte) (*models.UploadedFile, error) {
	if string(data) == "corrupt" {
		return nil, ErrInvalidPDF
	}
	return &models.UploadedFile{FileURI: "gs://b/uploads/" + displayName, DisplayName: displayName, MimeType: mimeType}, nil
}

type fakeClassifier struct{}

func (fakeClassifier) Classify(ctx context.Context, fileURI, mimeType string) (*models.Classification, error) {
	if fileURI == "gs://b/uploads/newsletter.pdf" {
		return &models.Classification{IsPurchaseOrder: false, Reason: "marketing"}, nil
	}
	return &models.Classification{IsPurchaseOrder: true, Reason: "has line items"}, nil
}

type fakeProcessor struct {
	mu   sync.Mutex
	uris []string
	err  error
}

func (f *fakeProcessor) ProcessFile(ctx context.Context, fileURI, mimeType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uris = append(f.uris, fileURI)
	return f.err
}

type fakeTracker struct {
	mu    sync.Mutex
	files []models.UploadedFile
}

func (f *fakeTracker) Has(uri string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.files {
		if x.FileURI == uri {
			return true
		}
	}
	return false
}

func (f *fakeTracker) AddFile(file models.UploadedFile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = append(f.files, file)
}

func pdf(name, body string) models.Attachment {
	return models.Attachment{Filename: name, MimeType: "application/pdf", Data: []byte(body)}
}

func newTestWatcher(src *fakeSource, proc *fakeProcessor, cp persist.Persister[models.MailboxState]) (*MailWatcher, *fakeTracker) {
	tr := &fakeTracker{}
	return NewMailWatcher(src, fakeUploader{}, fakeClassifier{}, proc, tr, cp, MailWatcherConfig{Topic: "projects/p/topics/gmail"}), tr
}

func TestParseGmailNotification(t *testing.T) {
	inner := base64.StdEncoding.EncodeToString([]byte(`{"emailAddress":"orders@example.com","historyId":9876}`))
	n, err := ParseGmailNotification([]byte(`{"message":{"data":"` + inner + `","messageId":"1"},"subscription":"s"}`))
	require.NoError(t, err)
	assert.Equal(t, "orders@example.com", n.EmailAddress)
	assert.Equal(t, uint64(9876), n.HistoryID)

	_, err = ParseGmailNotification([]byte(`{"message":{}}`))
	assert.Error(t, err)

	zero := base64.StdEncoding.EncodeToString([]byte(`{"emailAddress":"a@b.c"}`))
	_, err = ParseGmailNotification([]byte(`{"message":{"data":"` + zero + `"}}`))
	assert.Error(t, err)

	_, err = ParseGmailNotification([]byte(`not json`))
	assert.Error(t, err)
}

func TestStartWatch_SeedsCheckpointOnce(t *testing.T) {
	cp := persist.NewMemory[models.MailboxState]()
	src := &fakeSource{watch: &models.WatchResponse{HistoryID: 100, Expiration: 1700000000000}}
	w, _ := newTestWatcher(src, &fakeProcessor{}, cp)

	resp, err := w.StartWatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(100), resp.HistoryID)

	src.watch = &models.WatchResponse{HistoryID: 500}
	_, err = w.StartWatch(context.Background())
	require.NoError(t, err)

	state, err := cp.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), state.HistoryID)
}

func TestStartWatch_RequiresTopic(t *testing.T) {
	w := NewMailWatcher(&fakeSource{}, fakeUploader{}, fakeClassifier{}, &fakeProcessor{}, nil, persist.NewMemory[models.MailboxState](), MailWatcherConfig{})
	_, err := w.StartWatch(context.Background())
	assert.ErrorIs(t, err, ErrNoTopic)
}

func TestHandleNotification_ProcessesPurchaseOrders(t *testing.T) {
	cp := persist.NewMemory[models.MailboxState]()
	require.NoError(t, cp.Save(context.Background(), models.MailboxState{HistoryID: 100}))

	src := &fakeSource{
		ids: []string{"m1", "m2", "m3"},
		attachments: map[string][]models.Attachment{
			"m1": {pdf("po-1.pdf", "a"), {Filename: "sig.gif", MimeType: "image/gif", Data: []byte("g")}},
			"m2": {pdf("newsletter.pdf", "b"), pdf("broken.pdf", "corrupt")},
		},
	}
	proc := &fakeProcessor{}
	w, tr := newTestWatcher(src, proc, cp)

	report, err := w.HandleNotification(context.Background(), &models.GmailNotification{EmailAddress: "orders@example.com", HistoryID: 150})
	require.NoError(t, err)

	assert.Equal(t, []uint64{100}, src.sinceCalls)
	assert.Equal(t, &MailReport{Messages: 3, Attachments: 3, PurchaseOrders: 1, Processed: 1, Failed: 2}, report)
	assert.Equal(t, []string{"gs://b/uploads/po-1.pdf"}, proc.uris)
	assert.Len(t, tr.files, 2)

	state, err := cp.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(150), state.HistoryID)
	assert.Equal(t, "orders@example.com", state.EmailAddress)
}

func TestHandleNotification_ProcessingFailureIsCounted(t *testing.T) {
	cp := persist.NewMemory[models.MailboxState]()
	require.NoError(t, cp.Save(context.Background(), models.MailboxState{HistoryID: 1}))
	src := &fakeSource{ids: []string{"m1"}, attachments: map[string][]models.Attachment{"m1": {pdf("po.pdf", "x")}}}
	w, _ := newTestWatcher(src, &fakeProcessor{err: errors.New("extraction failed")}, cp)

	report, err := w.HandleNotification(context.Background(), &models.GmailNotification{HistoryID: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, report.PurchaseOrders)
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 1, report.Failed)
}

func TestHandleNotification_SeedsMissingCheckpoint(t *testing.T) {
	cp := persist.NewMemory[models.MailboxState]()
	src := &fakeSource{}
	w, _ := newTestWatcher(src, &fakeProcessor{}, cp)

	report, err := w.HandleNotification(context.Background(), &models.GmailNotification{HistoryID: 42})
	require.NoError(t, err)
	assert.Equal(t, &MailReport{}, report)
	assert.Empty(t, src.sinceCalls)

	state, err := cp.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), state.HistoryID)
}

func TestHandleNotification_StaleIsSkipped(t *testing.T) {
	cp := persist.NewMemory[models.MailboxState]()
	require.NoError(t, cp.Save(context.Background(), models.MailboxState{HistoryID: 200}))
	src := &fakeSource{}
	w, _ := newTestWatcher(src, &fakeProcessor{}, cp)

	_, err := w.HandleNotification(context.Background(), &models.GmailNotification{HistoryID: 150})
	require.NoError(t, err)
	assert.Empty(t, src.sinceCalls)
}

func TestHandleNotification_ListFailureKeepsCheckpoint(t *testing.T) {
	cp := persist.NewMemory[models.MailboxState]()
	require.NoError(t, cp.Save(context.Background(), models.MailboxState{HistoryID: 100}))
	src := &fakeSource{listErr: errors.New("connection reset")}
	w, _ := newTestWatcher(src, &fakeProcessor{}, cp)

	_, err := w.HandleNotification(context.Background(), &models.GmailNotification{HistoryID: 300})
	require.Error(t, err)

	state, err := cp.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), state.HistoryID)
}

func TestHandleNotification_ExpiredHistoryReseedsCheckpoint(t *testing.T) {
	cp := persist.NewMemory[models.MailboxState]()
	require.NoError(t, cp.Save(context.Background(), models.MailboxState{HistoryID: 100}))
	src := &fakeSource{listErr: fmt.Errorf("gmail history since 100: %w", gcp.ErrHistoryExpired)}
	proc := &fakeProcessor{}
	w, _ := newTestWatcher(src, proc, cp)

	report, err := w.HandleNotification(context.Background(), &models.GmailNotification{EmailAddress: "po@example.com", HistoryID: 900})
	require.NoError(t, err)
	assert.Equal(t, &MailReport{}, report)

	state, err := cp.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(900), state.HistoryID)
	assert.Equal(t, "po@example.com", state.EmailAddress)

	// the next notification lists from the fresh checkpoint
	src.listErr = nil
	_, err = w.HandleNotification(context.Background(), &models.GmailNotification{HistoryID: 950})
	require.NoError(t, err)
	assert.Equal(t, []uint64{100, 900}, src.sinceCalls)
}

func TestSaveCheckpoint_NeverMovesBackwards(t *testing.T) {
	cp := persist.NewMemory[models.MailboxState]()
	require.NoError(t, cp.Save(context.Background(), models.MailboxState{HistoryID: 700}))
	w, _ := newTestWatcher(&fakeSource{}, &fakeProcessor{}, cp)

	require.NoError(t, w.saveCheckpoint(context.Background(), &models.GmailNotification{HistoryID: 650}))

	state, err := cp.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(700), state.HistoryID)
}
