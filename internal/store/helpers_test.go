package store

import (
	"context"
	"sync"
	"testing"

	"github.com/Lllllllleong/autoextract/internal/models"
	"github.com/Lllllllleong/autoextract/internal/persist"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	mu     sync.Mutex
	calls  []models.ExtractRequest
	result *models.ExtractionResult
	err    error
	block  chan struct{}
}

func (f *fakeExtractor) Extract(ctx context.Context, req models.ExtractRequest) (*models.ExtractionResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.result, f.err
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordedNotification struct {
	kind    NotificationKind
	token   string
	message string
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []recordedNotification
}

func (r *recordingNotifier) add(kind NotificationKind, token, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, recordedNotification{kind: kind, token: token, message: message})
}

func (r *recordingNotifier) Loading(token, message string) { r.add(NotifyLoading, token, message) }
func (r *recordingNotifier) Success(token, message string) { r.add(NotifySuccess, token, message) }
func (r *recordingNotifier) Error(token, message string)   { r.add(NotifyError, token, message) }

func (r *recordingNotifier) all() []recordedNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedNotification(nil), r.got...)
}

func newTestStore(t *testing.T, ex Extractor) (*Store, *persist.Memory[Snapshot], *recordingNotifier) {
	t.Helper()
	p := persist.NewMemory[Snapshot]()
	n := &recordingNotifier{}
	s, err := New(context.Background(), p, ex, n)
	require.NoError(t, err)
	return s, p, n
}

func sampleResult() *models.ExtractionResult {
	return &models.ExtractionResult{
		Invoices: []models.Invoice{{
			InvoiceID:    "INV-1",
			CustomerID:   "CUST-1",
			CustomerName: "Acme",
			ProductID:    "PROD-1",
			ProductName:  "Bolt",
			Quantity:     models.Ptr(3.0),
			Tax:          models.Ptr(1.5),
			TotalAmount:  models.Ptr(31.5),
		}},
		Products: []models.Product{{
			ProductID:    "PROD-1",
			ProductName:  "Bolt",
			UnitPrice:    models.Ptr(10.0),
			Tax:          models.Ptr(1.5),
			PriceWithTax: models.Ptr(11.5),
		}},
		Customers: []models.Customer{{
			CustomerID:   "CUST-1",
			CustomerName: "Acme",
		}},
	}
}
