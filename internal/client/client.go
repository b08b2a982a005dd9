// Package client talks to a deployed AutoExtract API. It satisfies the same
// extractor, lister and file-service interfaces as the in-process services.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/Lllllllleong/autoextract/internal/models"
	"github.com/Lllllllleong/autoextract/internal/services"
	"github.com/Lllllllleong/autoextract/internal/store"
)

const requestTimeout = 5 * time.Minute

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for the API at baseURL. A nil httpClient gets a
// default with a generous timeout, since extraction runs a model call.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Extract posts req to /api/extract. Any non-2xx status comes back as a
// *store.ExtractError carrying the server's error code and message.
func (c *Client) Extract(ctx context.Context, req models.ExtractRequest) (*models.ExtractionResult, error) {
	var resp models.ExtractResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/extract", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// List fetches /api/files.
func (c *Client) List(ctx context.Context) ([]models.UploadedFile, error) {
	var resp models.ListFilesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/files", nil, &resp); err != nil {
		return nil, err
	}
	files := make([]models.UploadedFile, 0, len(resp.Files))
	for _, f := range resp.Files {
		files = append(files, models.UploadedFile{FileURI: f.URI, DisplayName: f.DisplayName, MimeType: f.MimeType})
	}
	return files, nil
}

// Delete posts to /api/delete. A 404 maps to services.ErrObjectNotFound.
func (c *Client) Delete(ctx context.Context, fileURI string) error {
	var resp models.DeleteFileResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/delete", models.DeleteFileRequest{FileURI: fileURI}, &resp)
	var apiErr *store.ExtractError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", services.ErrObjectNotFound, fileURI)
	}
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("delete %s was not acknowledged", fileURI)
	}
	return nil
}

// Upload sends data as the multipart "file" field of /api/upload.
func (c *Client) Upload(ctx context.Context, displayName, mimeType string, data []byte) (*models.UploadedFile, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, displayName))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("build upload body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("build upload body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("build upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp models.UploadResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &models.UploadedFile{FileURI: resp.FileURI, DisplayName: resp.DisplayName, MimeType: resp.MimeType}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	logCtx := slog.With("method", req.Method, "path", req.URL.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logCtx.Error("Request to extraction API failed", "error", err)
		return fmt.Errorf("request %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(resp)
		logCtx.Warn("Extraction API returned an error", "status", resp.StatusCode, "code", apiErr.Code)
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response of %s: %w", req.URL.Path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) *store.ExtractError {
	body, _ := io.ReadAll(resp.Body)

	var payload models.ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return &store.ExtractError{Status: resp.StatusCode, Code: payload.Code, Message: payload.Error}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &store.ExtractError{Status: resp.StatusCode, Message: msg}
}
