package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/Lllllllleong/autoextract/internal/models"
	"github.com/Lllllllleong/autoextract/internal/services"
	"github.com/Lllllllleong/autoextract/internal/store"
	"github.com/gin-gonic/gin"
)

func (a *API) handleUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		if bodyTooLarge(err) {
			respondMessage(c, http.StatusRequestEntityTooLarge, "file exceeds the upload limit")
			return
		}
		respondMessage(c, http.StatusBadRequest, "missing file")
		return
	}

	upload, err := fileHeader.Open()
	if err != nil {
		slog.Error("Failed to open uploaded file", "error", err, "filename", fileHeader.Filename)
		respondMessage(c, http.StatusInternalServerError, "unable to read uploaded file")
		return
	}
	defer upload.Close()

	data, err := io.ReadAll(upload)
	if err != nil {
		slog.Error("Failed to read uploaded file", "error", err, "filename", fileHeader.Filename)
		respondMessage(c, http.StatusInternalServerError, "unable to read uploaded file")
		return
	}
	mimeType := uploadMIMEType(fileHeader.Header.Get("Content-Type"), data)

	a.registry.SetUploading(true)
	defer a.registry.SetUploading(false)

	uploaded, err := a.files.Upload(c.Request.Context(), fileHeader.Filename, mimeType, data)
	switch {
	case errors.Is(err, services.ErrUnsupportedUpload):
		respondError(c, http.StatusUnsupportedMediaType, err)
		return
	case errors.Is(err, services.ErrInvalidPDF):
		respondError(c, http.StatusBadRequest, err)
		return
	case err != nil:
		slog.Error("Upload failed", "error", err, "filename", fileHeader.Filename)
		respondMessage(c, http.StatusBadGateway, "failed to store file")
		return
	}

	if !a.registry.Has(uploaded.FileURI) {
		a.registry.AddFile(*uploaded)
	}
	c.JSON(http.StatusOK, models.UploadResponse{
		FileURI:     uploaded.FileURI,
		DisplayName: uploaded.DisplayName,
		MimeType:    uploaded.MimeType,
	})
}

// uploadMIMEType prefers the declared part type and sniffs the content when
// the browser sent none or a generic one.
func uploadMIMEType(declared string, data []byte) string {
	if declared == "" || declared == "application/octet-stream" {
		declared = http.DetectContentType(data)
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return declared
	}
	return mediaType
}

func (a *API) handleListFiles(c *gin.Context) {
	files, err := a.files.List(c.Request.Context())
	if err != nil {
		slog.Error("Failed to list files", "error", err)
		respondMessage(c, http.StatusBadGateway, "failed to list files")
		return
	}
	a.registry.SetFiles(files)

	listed := make([]models.ListedFile, 0, len(files))
	for _, f := range files {
		listed = append(listed, models.ListedFile{URI: f.FileURI, DisplayName: f.DisplayName, MimeType: f.MimeType})
	}
	c.JSON(http.StatusOK, models.ListFilesResponse{Files: listed})
}

func (a *API) handleDeleteFile(c *gin.Context) {
	var payload models.DeleteFileRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	err := a.files.Delete(c.Request.Context(), payload.FileURI)
	if errors.Is(err, services.ErrObjectNotFound) {
		respondError(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		respondMessage(c, http.StatusBadGateway, "failed to delete file")
		return
	}

	a.registry.RemoveFile(payload.FileURI)
	c.JSON(http.StatusOK, models.DeleteFileResponse{Success: true})
}

func (a *API) handleExtract(c *gin.Context) {
	var req models.ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	result, err := a.extractor.Extract(c.Request.Context(), req)
	if err != nil {
		respondExtractError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ExtractResponse{Result: *result})
}

func respondExtractError(c *gin.Context, err error) {
	var upstream *store.ExtractError
	switch {
	case errors.Is(err, services.ErrUnknownPrompt):
		respondCode(c, http.StatusBadRequest, "unknown_prompt", err.Error())
	case errors.Is(err, services.ErrRefusal):
		respondCode(c, http.StatusUnprocessableEntity, "refused", err.Error())
	case errors.Is(err, services.ErrEmptyResponse):
		respondCode(c, http.StatusBadGateway, "empty_response", err.Error())
	case errors.As(err, &upstream):
		status := upstream.Status
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		respondCode(c, status, upstream.Code, upstream.Message)
	default:
		slog.Error("Extraction failed", "error", err)
		respondCode(c, http.StatusInternalServerError, "extraction_failed", err.Error())
	}
}

func (a *API) handleGetUploads(c *gin.Context) {
	c.JSON(http.StatusOK, a.registry.Snapshot())
}

func (a *API) handleRefreshUploads(c *gin.Context) {
	a.registry.FetchFiles(c.Request.Context())
	c.JSON(http.StatusOK, a.registry.Snapshot())
}
