package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeDocumentIngested is emitted after a document's chunks are indexed,
	// fully or partially.
	EventTypeDocumentIngested = "docchat.document.ingested"

	// EventTypeDocumentDeleted is emitted after a document and its chunks are removed.
	EventTypeDocumentDeleted = "docchat.document.deleted"
)

// DocumentEvent is a transport-neutral event payload for a document lifecycle change.
type DocumentEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	DocumentID    string    `json:"document_id"`
	OwnerID       string    `json:"owner_id"`
	ChunkCount    int       `json:"chunk_count"`
	FailedIndices []int     `json:"failed_indices,omitempty"`
}

// NewDocumentEvent stamps a new event with an ID and the current time.
func NewDocumentEvent(eventType, documentID, ownerID string) *DocumentEvent {
	return &DocumentEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		DocumentID:    documentID,
		OwnerID:       ownerID,
	}
}
