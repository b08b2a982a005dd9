// Package handlers exposes the entity store, the upload registry and the
// extraction service over a JSON HTTP API.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Lllllllleong/autoextract/internal/models"
	"github.com/Lllllllleong/autoextract/internal/store"
	"github.com/Lllllllleong/autoextract/internal/uploads"
	"github.com/gin-gonic/gin"
)

// FileService stores, lists and deletes uploaded documents.
type FileService interface {
	Upload(ctx context.Context, displayName, mimeType string, data []byte) (*models.UploadedFile, error)
	List(ctx context.Context) ([]models.UploadedFile, error)
	Delete(ctx context.Context, fileURI string) error
}

// ExtractionService runs a prompt over stored files.
type ExtractionService interface {
	Extract(ctx context.Context, req models.ExtractRequest) (*models.ExtractionResult, error)
}

// MailService registers the inbox watch.
type MailService interface {
	StartWatch(ctx context.Context) (*models.WatchResponse, error)
}

// Deps are the components served by the router. Board and Mail may be nil.
type Deps struct {
	Files          FileService
	Extractor      ExtractionService
	Store          *store.Store
	Board          *store.Board
	Registry       *uploads.Registry
	Mail           MailService
	MaxUploadBytes int64
}

type API struct {
	files     FileService
	extractor ExtractionService
	store     *store.Store
	board     *store.Board
	registry  *uploads.Registry
	mail      MailService
}

func NewAPI(d Deps) *API {
	return &API{
		files:     d.Files,
		extractor: d.Extractor,
		store:     d.Store,
		board:     d.Board,
		registry:  d.Registry,
		mail:      d.Mail,
	}
}

// NewRouter builds the engine with the standard middleware chain.
func NewRouter(d Deps) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger())
	engine.Use(MaxBodySize(d.MaxUploadBytes))
	engine.Use(CORS())

	registerRoutes(engine, NewAPI(d))
	return engine
}

func registerRoutes(r *gin.Engine, api *API) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", api.handleHealth)

		apiGroup.POST("/upload", api.handleUpload)
		apiGroup.GET("/files", api.handleListFiles)
		apiGroup.POST("/extract", api.handleExtract)
		apiGroup.POST("/delete", api.handleDeleteFile)

		apiGroup.GET("/uploads", api.handleGetUploads)
		apiGroup.POST("/uploads/refresh", api.handleRefreshUploads)

		apiGroup.GET("/entities", api.handleGetEntities)
		apiGroup.POST("/entities/process", api.handleProcessFile)
		apiGroup.DELETE("/processed-files", api.handleRemoveProcessedFile)

		apiGroup.POST("/products", api.handleAddProduct)
		apiGroup.PATCH("/products/:id", api.handleUpdateProduct)
		apiGroup.DELETE("/products/:id", api.handleRemoveProduct)

		apiGroup.POST("/customers", api.handleAddCustomer)
		apiGroup.PATCH("/customers/:id", api.handleUpdateCustomer)
		apiGroup.DELETE("/customers/:id", api.handleRemoveCustomer)

		apiGroup.POST("/invoices", api.handleAddInvoice)
		apiGroup.PATCH("/invoices/:id", api.handleUpdateInvoice)
		apiGroup.DELETE("/invoices/:id", api.handleRemoveInvoice)

		apiGroup.GET("/notifications", api.handleListNotifications)
		apiGroup.DELETE("/notifications", api.handleDismissNotification)

		apiGroup.POST("/mail/watch", api.handleStartWatch)
	}
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func respondError(c *gin.Context, status int, err error) {
	respondMessage(c, status, err.Error())
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, models.ErrorResponse{Error: message})
}

func respondCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{Error: message, Code: code})
}

// bodyTooLarge reports whether err came from the MaxBodySize limit.
func bodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
