package storage

import "time"

// Status is the ingestion state of a document.
type Status string

const (
	// StatusPending means the document is stored but not yet indexed.
	StatusPending Status = "pending"

	// StatusReady means every chunk of the document is indexed.
	StatusReady Status = "ready"

	// StatusPartial means some chunks failed to index. FailedChunks lists
	// their indices.
	StatusPartial Status = "partial"

	// StatusFailed means no chunk could be indexed.
	StatusFailed Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReady, StatusPartial, StatusFailed:
		return true
	}
	return false
}

// Document is the metadata record of an uploaded file.
type Document struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	UploadedAt time.Time `json:"uploaded_at"`

	// StorageKey addresses the original bytes in the blob store.
	StorageKey string `json:"storage_key"`

	// TextContent is the extracted text the chunks were cut from.
	TextContent string `json:"-"`

	Status       Status `json:"status"`
	FailedChunks []int  `json:"failed_chunks,omitempty"`
}
