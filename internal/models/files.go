package models

// FileStatus is the processing state of one file URI.
type FileStatus string

const (
	StatusUnseen     FileStatus = "unseen"
	StatusProcessing FileStatus = "processing"
	StatusSuccess    FileStatus = "success"
	StatusError      FileStatus = "error"
)

// ProcessedFile records the outcome of one extraction attempt. Only success
// and error entries are ever stored.
type ProcessedFile struct {
	FileURI string     `json:"fileUri" firestore:"fileUri"`
	Status  FileStatus `json:"status" firestore:"status"`
	Error   string     `json:"error,omitempty" firestore:"error,omitempty"`
}

// UploadedFile describes a file that exists in remote storage, whether or not
// it has been extracted.
type UploadedFile struct {
	FileURI     string `json:"fileUri" firestore:"fileUri"`
	DisplayName string `json:"displayName" firestore:"displayName"`
	MimeType    string `json:"mimeType" firestore:"mimeType"`
}

// Attachment is a file pulled from an email message.
type Attachment struct {
	MessageID string
	Filename  string
	MimeType  string
	Data      []byte
}

// MailboxState is the persisted Gmail history checkpoint.
type MailboxState struct {
	EmailAddress string `json:"emailAddress" firestore:"emailAddress"`
	HistoryID    int64  `json:"historyId" firestore:"historyId"`
}
