package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Lllllllleong/autoextract/internal/config"
	"github.com/Lllllllleong/autoextract/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemoteAPI serves the extraction and file endpoints of a deployed API.
func fakeRemoteAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/extract", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.ExtractResponse{Result: models.ExtractionResult{
			Customers: []models.Customer{{CustomerID: "CUST-1", CustomerName: "Acme"}},
		}})
	})
	mux.HandleFunc("/api/files", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.ListFilesResponse{Files: []models.ListedFile{
			{URI: "gs://remote/uploads/a.pdf", DisplayName: "a.pdf", MimeType: "application/pdf"},
		}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func remoteConfig(t *testing.T, backend string) config.Config {
	return config.Config{
		ProjectID:      "demo",
		UploadBucket:   "demo-uploads",
		StateBackend:   backend,
		DataDir:        t.TempDir(),
		MaxUploadBytes: 1 << 20,
		ExtractionURL:  fakeRemoteAPI(t).URL,
	}
}

func TestNew_RemoteModeServesAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a, err := New(context.Background(), remoteConfig(t, config.BackendMemory))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Nil(t, a.Mail)
	router := a.Router()

	body := `{"fileUri": "gs://remote/uploads/a.pdf", "mimeType": "application/pdf"}`
	req := httptest.NewRequest(http.MethodPost, "/api/entities/process", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, a.Store.Customers(), 1)
	assert.Equal(t, "Acme", a.Store.Customers()[0].CustomerName)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/uploads/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, a.Registry.Has("gs://remote/uploads/a.pdf"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/mail/watch", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNew_FileBackendSurvivesRestart(t *testing.T) {
	cfg := remoteConfig(t, config.BackendFile)

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, a.Store.ProcessFile(context.Background(), "gs://remote/uploads/a.pdf", "application/pdf"))
	require.NoError(t, a.Close())

	_, err = os.Stat(filepath.Join(cfg.DataDir, "autoextract-entities.json"))
	require.NoError(t, err)

	b, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	assert.Equal(t, models.StatusSuccess, b.Store.FileStatus("gs://remote/uploads/a.pdf"))
	assert.Len(t, b.Store.Customers(), 1)
}

func TestNew_TwoAppsOnOneBackendKeepBothWrites(t *testing.T) {
	cfg := remoteConfig(t, config.BackendFile)

	mail, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mail.Close() })
	api, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = api.Close() })

	require.NoError(t, mail.Store.ProcessFile(context.Background(), "gs://remote/uploads/a.pdf", "application/pdf"))
	require.NoError(t, api.Store.AddCustomer(models.Customer{CustomerID: "CUST-9", CustomerName: "Initech"}))

	fresh, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fresh.Close() })
	assert.Equal(t, models.StatusSuccess, fresh.Store.FileStatus("gs://remote/uploads/a.pdf"))
	assert.Len(t, fresh.Store.Customers(), 2)
}

func TestNewPersister_UnknownBackend(t *testing.T) {
	_, err := newPersister[models.MailboxState](config.Config{StateBackend: "redis"}, nil, "x")
	assert.Error(t, err)

	_, err = newPersister[models.MailboxState](config.Config{StateBackend: config.BackendFirestore}, nil, "x")
	assert.Error(t, err)
}
