package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/autoextract/internal/models"
	"github.com/Lllllllleong/autoextract/internal/store"
	"github.com/gin-gonic/gin"
)

func (a *API) handleGetEntities(c *gin.Context) {
	if err := a.store.Refresh(c.Request.Context()); err != nil {
		slog.Warn("Serving local entities after reload failure", "error", err)
	}
	snap := a.store.Snapshot()
	if snap.Invoices == nil {
		snap.Invoices = []models.Invoice{}
	}
	if snap.Products == nil {
		snap.Products = []models.Product{}
	}
	if snap.Customers == nil {
		snap.Customers = []models.Customer{}
	}
	if snap.ProcessedFiles == nil {
		snap.ProcessedFiles = []models.ProcessedFile{}
	}
	c.JSON(http.StatusOK, snap)
}

func (a *API) handleProcessFile(c *gin.Context) {
	var payload models.ProcessFileRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	err := a.store.ProcessFile(c.Request.Context(), payload.FileURI, payload.MimeType)
	switch {
	case errors.Is(err, store.ErrUnsupportedMIMEType):
		respondCode(c, http.StatusUnsupportedMediaType, "unsupported_type", err.Error())
		return
	case errors.Is(err, store.ErrClosed):
		respondError(c, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		respondCode(c, http.StatusBadGateway, "extraction_failed", err.Error())
		return
	}

	processed := a.store.ProcessedFiles()
	if processed == nil {
		processed = []models.ProcessedFile{}
	}
	c.JSON(http.StatusOK, models.ProcessFileResponse{
		FileURI:        payload.FileURI,
		Status:         a.store.FileStatus(payload.FileURI),
		ProcessedFiles: processed,
	})
}

func (a *API) handleRemoveProcessedFile(c *gin.Context) {
	fileURI := c.Query("fileUri")
	if fileURI == "" {
		respondMessage(c, http.StatusBadRequest, "fileUri is required")
		return
	}
	if err := a.store.RemoveProcessedFile(fileURI); err != nil {
		respondMutationError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleAddProduct(c *gin.Context) {
	var p models.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if p.ProductName == "" {
		respondMessage(c, http.StatusBadRequest, "productName is required")
		return
	}
	if p.ProductID == "" {
		p.ProductID = models.NewProductID()
	}
	if err := a.store.AddProduct(p); err != nil {
		respondMutationError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (a *API) handleUpdateProduct(c *gin.Context) {
	var upd store.ProductUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if err := a.store.UpdateProduct(c.Param("id"), upd); err != nil {
		respondMutationError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleRemoveProduct(c *gin.Context) {
	if err := a.store.RemoveProduct(c.Param("id")); err != nil {
		respondMutationError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleAddCustomer(c *gin.Context) {
	var cust models.Customer
	if err := c.ShouldBindJSON(&cust); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if cust.CustomerName == "" {
		respondMessage(c, http.StatusBadRequest, "customerName is required")
		return
	}
	if cust.CustomerID == "" {
		cust.CustomerID = models.NewCustomerID()
	}
	if err := a.store.AddCustomer(cust); err != nil {
		respondMutationError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cust)
}

func (a *API) handleUpdateCustomer(c *gin.Context) {
	var upd store.CustomerUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if err := a.store.UpdateCustomer(c.Param("id"), upd); err != nil {
		respondMutationError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleRemoveCustomer(c *gin.Context) {
	if err := a.store.RemoveCustomer(c.Param("id")); err != nil {
		respondMutationError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleAddInvoice(c *gin.Context) {
	var inv models.Invoice
	if err := c.ShouldBindJSON(&inv); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if inv.InvoiceID == "" {
		inv.InvoiceID = models.NewInvoiceID()
	}
	if err := a.store.AddInvoice(inv); err != nil {
		respondMutationError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func (a *API) handleUpdateInvoice(c *gin.Context) {
	var upd store.InvoiceUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if err := a.store.UpdateInvoice(c.Param("id"), upd); err != nil {
		respondMutationError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleRemoveInvoice(c *gin.Context) {
	if err := a.store.RemoveInvoice(c.Param("id")); err != nil {
		respondMutationError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func respondMutationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(c, http.StatusNotFound, err)
	case errors.Is(err, store.ErrClosed):
		respondError(c, http.StatusServiceUnavailable, err)
	default:
		respondError(c, http.StatusInternalServerError, err)
	}
}
