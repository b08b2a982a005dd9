package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/autoextract/internal/gcp"
	"github.com/Lllllllleong/autoextract/internal/models"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"google.golang.org/api/iterator"
)

const uploadPrefix = "uploads/"

var (
	// ErrUnsupportedUpload is returned for file types the app does not accept.
	ErrUnsupportedUpload = errors.New("unsupported upload type")
	// ErrInvalidPDF is returned when a PDF upload fails validation.
	ErrInvalidPDF = errors.New("invalid PDF document")
	// ErrObjectNotFound is returned when deleting a file that does not exist.
	ErrObjectNotFound = errors.New("file not found")
)

var supportedUploads = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"image/webp",
	"text/csv",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// SupportedUpload reports whether mimeType can be uploaded.
func SupportedUpload(mimeType string) bool {
	return slices.Contains(supportedUploads, mimeType)
}

// FileStore keeps uploaded documents in a Cloud Storage bucket.
type FileStore struct {
	client     *storage.Client
	bucketName string
}

func NewFileStore(client *storage.Client, bucketName string) *FileStore {
	return &FileStore{client: client, bucketName: bucketName}
}

// Upload stores data under a content-addressed name, so uploading the same
// bytes twice yields the same URI without a second write.
func (f *FileStore) Upload(ctx context.Context, displayName, mimeType string, data []byte) (*models.UploadedFile, error) {
	logCtx := slog.With("displayName", displayName, "mimeType", mimeType, "bucket", f.bucketName)

	if !SupportedUpload(mimeType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedUpload, mimeType)
	}
	if mimeType == "application/pdf" {
		pageCount, err := validatePDF(data)
		if err != nil {
			logCtx.Warn("Rejected invalid PDF upload", "error", err)
			return nil, err
		}
		logCtx = logCtx.With("pageCount", pageCount)
	}

	objectName := objectNameFor(displayName, data)
	obj := f.client.Bucket(f.bucketName).Object(objectName)
	created, err := gcp.CreateObjectAtomically(ctx, obj, data, mimeType, map[string]string{"displayName": displayName})
	if err != nil {
		logCtx.Error("Failed to save upload to GCS", "error", err, "object", objectName)
		return nil, err
	}

	uri := gcp.GCSURI(f.bucketName, objectName)
	logCtx.Info("Upload stored.", "fileUri", uri, "created", created, "bytes", len(data))
	return &models.UploadedFile{FileURI: uri, DisplayName: displayName, MimeType: mimeType}, nil
}

// List returns every uploaded file in the bucket.
func (f *FileStore) List(ctx context.Context) ([]models.UploadedFile, error) {
	it := f.client.Bucket(f.bucketName).Objects(ctx, &storage.Query{Prefix: uploadPrefix})

	var files []models.UploadedFile
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			slog.Error("Failed to list uploads", "error", err, "bucket", f.bucketName)
			return nil, fmt.Errorf("failed to list uploads: %w", err)
		}
		files = append(files, uploadedFileFromAttrs(attrs))
	}
	return files, nil
}

// Delete removes the object behind fileURI.
func (f *FileStore) Delete(ctx context.Context, fileURI string) error {
	bucket, object, err := gcp.ParseGCSURI(fileURI)
	if err != nil {
		return err
	}
	if bucket != f.bucketName {
		return fmt.Errorf("%w: %s is not in bucket %s", ErrObjectNotFound, fileURI, f.bucketName)
	}

	err = f.client.Bucket(bucket).Object(object).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, fileURI)
	}
	if err != nil {
		slog.Error("Failed to delete upload", "error", err, "fileUri", fileURI)
		return fmt.Errorf("failed to delete %s: %w", fileURI, err)
	}
	slog.Info("Upload deleted.", "fileUri", fileURI)
	return nil
}

func uploadedFileFromAttrs(attrs *storage.ObjectAttrs) models.UploadedFile {
	name := attrs.Metadata["displayName"]
	if name == "" {
		name = path.Base(attrs.Name)
	}
	return models.UploadedFile{
		FileURI:     gcp.GCSURI(attrs.Bucket, attrs.Name),
		DisplayName: name,
		MimeType:    attrs.ContentType,
	}
}

// objectNameFor derives uploads/<sha256><ext> from the content.
func objectNameFor(displayName string, data []byte) string {
	sum := sha256.Sum256(data)
	ext := strings.ToLower(filepath.Ext(displayName))
	return uploadPrefix + hex.EncodeToString(sum[:]) + ext
}

// validatePDF checks the document parses and returns its page count.
func validatePDF(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	pageCount, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	return pageCount, nil
}
