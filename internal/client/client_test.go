package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Lllllllleong/autoextract/internal/models"
	"github.com/Lllllllleong/autoextract/internal/services"
	"github.com/Lllllllleong/autoextract/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", srv.Client())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestExtract_Success(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/extract", r.URL.Path)

		var req models.ExtractRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, models.PromptInvoiceExtraction, req.Prompt)
		assert.Len(t, req.Files, 1)

		writeJSON(w, http.StatusOK, map[string]any{"result": map[string]any{
			"products": []map[string]any{{"productId": "PROD-1", "productName": "Bolt", "unitPrice": 2.5}},
		}})
	})

	res, err := c.Extract(context.Background(), models.ExtractRequest{
		Files:  []models.FileRef{{FileURI: "gs://b/a.pdf", MimeType: "application/pdf"}},
		Prompt: models.PromptInvoiceExtraction,
	})
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, 2.5, models.ValueOf(res.Products[0].UnitPrice))
	assert.Nil(t, res.Invoices)
}

func TestExtract_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   store.ExtractError
	}{
		{"structured", http.StatusUnprocessableEntity, `{"error": "refused", "code": "refused"}`, store.ExtractError{Status: 422, Code: "refused", Message: "refused"}},
		{"plain text", http.StatusInternalServerError, "boom\n", store.ExtractError{Status: 500, Message: "boom"}},
		{"empty", http.StatusBadGateway, "", store.ExtractError{Status: 502, Message: "Bad Gateway"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.Extract(context.Background(), models.ExtractRequest{Prompt: "x"})

			var apiErr *store.ExtractError
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, tt.want, *apiErr)
		})
	}
}

func TestList(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/files", r.URL.Path)
		writeJSON(w, http.StatusOK, models.ListFilesResponse{Files: []models.ListedFile{
			{URI: "gs://b/uploads/a.pdf", DisplayName: "a.pdf", MimeType: "application/pdf"},
		}})
	})

	files, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.UploadedFile{{FileURI: "gs://b/uploads/a.pdf", DisplayName: "a.pdf", MimeType: "application/pdf"}}, files)
}

func TestDelete(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req models.DeleteFileRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.FileURI == "gs://b/missing.pdf" {
			writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "file not found"})
			return
		}
		writeJSON(w, http.StatusOK, models.DeleteFileResponse{Success: true})
	})

	require.NoError(t, c.Delete(context.Background(), "gs://b/a.pdf"))
	assert.ErrorIs(t, c.Delete(context.Background(), "gs://b/missing.pdf"), services.ErrObjectNotFound)
}

func TestUpload(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		f, h, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "%PDF-1.4", string(data))
		assert.Equal(t, "application/pdf", h.Header.Get("Content-Type"))

		writeJSON(w, http.StatusOK, models.UploadResponse{FileURI: "gs://b/uploads/" + h.Filename, DisplayName: h.Filename, MimeType: "application/pdf"})
	})

	up, err := c.Upload(context.Background(), "po.pdf", "application/pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "gs://b/uploads/po.pdf", up.FileURI)
	assert.Equal(t, "po.pdf", up.DisplayName)
}
