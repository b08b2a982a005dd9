package models

// These structs define the JSON payloads exchanged between the UI, the API
// function and the extraction client.

const (
	// PromptInvoiceExtraction selects the invoice/product/customer extraction prompt.
	PromptInvoiceExtraction = "invoice-extraction"
	// PromptPurchaseOrderClassification selects the purchase-order classifier prompt.
	PromptPurchaseOrderClassification = "classify-purchase-order"
)

// FileRef points the extractor at a file already in remote storage.
type FileRef struct {
	FileURI  string `json:"fileUri" binding:"required"`
	MimeType string `json:"mimeType" binding:"required"`
}

// ExtractRequest is the input of the extraction endpoint.
type ExtractRequest struct {
	Files  []FileRef `json:"files" binding:"required,min=1,dive"`
	Prompt string    `json:"prompt" binding:"required"`
}

// ExtractResponse is the success output of the extraction endpoint.
type ExtractResponse struct {
	Result ExtractionResult `json:"result"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// UploadResponse is the output of the upload endpoint.
type UploadResponse struct {
	FileURI     string `json:"fileUri"`
	DisplayName string `json:"displayName"`
	MimeType    string `json:"mimeType"`
}

// ListedFile is one entry of the file listing endpoint.
type ListedFile struct {
	URI         string `json:"uri"`
	DisplayName string `json:"displayName"`
	MimeType    string `json:"mimeType"`
}

// ListFilesResponse is the output of the file listing endpoint.
type ListFilesResponse struct {
	Files []ListedFile `json:"files"`
}

// DeleteFileRequest is the input of the deletion endpoint.
type DeleteFileRequest struct {
	FileURI string `json:"fileUri" binding:"required"`
}

// DeleteFileResponse is the success output of the deletion endpoint.
type DeleteFileResponse struct {
	Success bool `json:"success"`
}

// ProcessFileRequest asks the entity store to run the extraction workflow.
type ProcessFileRequest struct {
	FileURI  string `json:"fileUri" binding:"required"`
	MimeType string `json:"mimeType" binding:"required"`
}

// ProcessFileResponse reports the state of the file after the workflow ran,
// together with every processed-file entry.
type ProcessFileResponse struct {
	FileURI        string          `json:"fileUri"`
	Status         FileStatus      `json:"status"`
	ProcessedFiles []ProcessedFile `json:"processedFiles"`
}

// Classification is the purchase-order classifier verdict for one document.
type Classification struct {
	IsPurchaseOrder bool   `json:"isPurchaseOrder"`
	Reason          string `json:"reason"`
}

// GmailNotification is the payload Gmail publishes to Pub/Sub for a watched mailbox.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// WatchResponse is returned after (re)registering the Gmail watch.
type WatchResponse struct {
	HistoryID  uint64 `json:"historyId"`
	Expiration int64  `json:"expiration"`
}
